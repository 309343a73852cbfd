package ir

// NodeID identifies a node within one Graph.
//
// IDs are assigned in creation order by the graph builder and never reused
// after removal. Zero is reserved as "no node" so a forgotten field is
// detectable instead of silently pointing at a real node.
type NodeID int

// None is the zero NodeID, meaning "no node".
const None NodeID = 0

// OpKind enumerates the closed set of operator kinds the IR can express.
//
// This is the only dispatch surface in the pipeline: the optimizer and the
// target emitters consult exhaustive tables keyed by OpKind. Adding support
// for a new operator means adding a constant here and a row to each table,
// never a new type.
type OpKind string

const (
	// OpInput is a declared network input. It has no IR inputs; its value
	// is supplied by the runtime as a (batch, time, dim) tensor.
	OpInput OpKind = "input"

	// OpOutput is a declared network output. It passes its single input
	// through and marks it as externally visible.
	OpOutput OpKind = "output"

	// OpIdentity passes its single input through unchanged. Dropout and
	// no-op components lower to this kind and fold away during
	// optimization.
	OpIdentity OpKind = "identity"

	// OpAffine is y = W·x + b. Weights are stored [out][in] as declared
	// in the model text; emitters transpose at serialization time.
	// Activation optionally carries a fused nonlinearity.
	OpAffine OpKind = "affine"

	// OpBatchNorm is the inference form of batch normalization:
	// y = scale⊙x + shift, with scale and shift precomputed from the
	// stored statistics.
	OpBatchNorm OpKind = "batchnorm"

	// OpReLU is the rectified linear nonlinearity.
	OpReLU OpKind = "relu"

	// OpLogSoftmax is the log-softmax nonlinearity over the feature axis.
	OpLogSoftmax OpKind = "log_softmax"

	// OpAppend concatenates its inputs along the feature axis, all
	// evaluated at the same time index.
	OpAppend OpKind = "append"

	// OpSplice concatenates time-shifted copies of one input along the
	// feature axis, one copy per entry in Context. An Append whose inputs
	// are offsets of a single base folds into this kind.
	OpSplice OpKind = "splice"

	// OpOffset reads its input shifted by Offset frames: out(t) = in(t+k).
	// The shift is carried on the input edge; the node exists so the
	// shifted value has a name other nodes can share.
	OpOffset OpKind = "offset"

	// OpSum adds its two inputs elementwise.
	OpSum OpKind = "sum"

	// OpScale multiplies its input by the literal constant Scale.
	OpScale OpKind = "scale"

	// OpIfDefined passes its input through where defined and substitutes
	// zeros where the requested frame does not exist. Frames it reaches
	// for do not count toward the network's required context.
	OpIfDefined OpKind = "if_defined"

	// OpReplaceIndex pins its input's time axis to the constant frame
	// TimeIndex, making the value time-invariant.
	OpReplaceIndex OpKind = "replace_index"

	// OpDimRange selects Dim features of its input starting at DimOffset.
	OpDimRange OpKind = "dim_range"
)

// Window is the span of a node's own frames, relative to one network output
// frame, that must be materialized for that output frame to be computed.
//
// Lo is typically ≤ 0 (frames in the past) and Hi ≥ 0 (frames in the
// future). The zero Window means "exactly the current frame".
type Window struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// Union widens w to cover o.
func (w Window) Union(o Window) Window {
	if o.Lo < w.Lo {
		w.Lo = o.Lo
	}
	if o.Hi > w.Hi {
		w.Hi = o.Hi
	}
	return w
}

// Shift translates the window by k frames.
func (w Window) Shift(k int) Window {
	return Window{Lo: w.Lo + k, Hi: w.Hi + k}
}

// Span is the number of extra frames the window adds beyond a single frame.
// A node materialized over L output frames occupies L + Span() rows.
func (w Window) Span() int {
	return w.Hi - w.Lo
}

// Context is the network-level temporal context requirement: how many
// frames beyond an output frame's own position are needed on each side.
// Both fields are ≥ 0 for a valid network.
type Context struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// ContextFromWindow converts an input-node demand window to the network
// context pair: a window reaching back to −10 yields Left = 10.
func ContextFromWindow(w Window) Context {
	return Context{Left: -w.Lo, Right: w.Hi}
}

// Input is one incoming edge of a node: the producing node plus the
// relative time offset at which it is read. Offset is 0 everywhere except
// edges out of OpOffset and OpSplice nodes.
type Input struct {
	Node   NodeID `json:"node"`
	Offset int    `json:"offset"`
}

// Node is one operator instance in the IR graph.
//
// The struct is a closed tagged variant: Kind selects which of the
// op-specific fields are meaningful, and all other fields stay zero. This
// arena-of-structs layout keeps the graph a pure value that later stages
// traverse without dynamic dispatch.
type Node struct {
	ID     NodeID  `json:"id"`
	Name   string  `json:"name"`
	Kind   OpKind  `json:"kind"`
	Inputs []Input `json:"inputs,omitempty"`

	// Dim is the feature dimension of this node's output, filled by the
	// graph builder's shape pass.
	Dim int `json:"dim"`

	// Window is the materialization demand computed by the context
	// analyzer: which of this node's frames are needed per output frame.
	Window Window `json:"window"`

	// TimeInvariant marks nodes whose value does not vary along the time
	// axis (downstream of OpReplaceIndex). Emitters broadcast these where
	// a time-full tensor is required.
	TimeInvariant bool `json:"time_invariant,omitempty"`

	// Offset is the frame shift for OpOffset.
	Offset int `json:"offset,omitempty"`

	// Context is the offset list for OpSplice, ascending.
	Context []int `json:"context,omitempty"`

	// Scale is the literal multiplier for OpScale.
	Scale float64 `json:"scale,omitempty"`

	// TimeVar and TimeIndex are the rebound axis name and pinned frame
	// for OpReplaceIndex.
	TimeVar   string `json:"time_var,omitempty"`
	TimeIndex int    `json:"time_index,omitempty"`

	// DimOffset is the feature-axis start for OpDimRange; the slice
	// width is Dim.
	DimOffset int `json:"dim_offset,omitempty"`

	// Weights and Bias are the parameters for OpAffine. Weights is
	// [out][in]; a nil Bias means the component declared none.
	Weights *Tensor `json:"-"`
	Bias    *Tensor `json:"-"`

	// BNScale and BNShift are the precomputed vectors for OpBatchNorm.
	BNScale *Tensor `json:"-"`
	BNShift *Tensor `json:"-"`

	// Activation is a nonlinearity fused into an OpAffine node by the
	// optimizer; empty means none.
	Activation OpKind `json:"activation,omitempty"`
}

// Graph is the unified intermediate representation of one network: an
// arena of nodes, a topological order over them, the declared input and
// output nodes, and the network-wide context pair.
//
// A Graph is built once per conversion run, owned exclusively by that run,
// and discarded after emission. It is not safe for concurrent mutation.
type Graph struct {
	nodes  map[NodeID]*Node
	byName map[string]NodeID
	nextID NodeID

	// Order is the topological order over node IDs, producers first.
	// Valid after the builder's sort; passes that mutate the graph must
	// re-sort.
	Order []NodeID

	// Inputs and Outputs are the declared global input and output nodes,
	// in declaration order.
	Inputs  []NodeID
	Outputs []NodeID

	// Context is the network-wide requirement computed by the context
	// analyzer and validated against the caller-declared pair.
	Context Context
}

// NewGraph creates an empty graph. The first added node gets ID 1.
func NewGraph() *Graph {
	return &Graph{
		nodes:  make(map[NodeID]*Node),
		byName: make(map[string]NodeID),
	}
}

// Add inserts a node, assigns it the next ID, and registers its name.
// Duplicate names are the caller's responsibility to reject first.
func (g *Graph) Add(n *Node) NodeID {
	g.nextID++
	n.ID = g.nextID
	g.nodes[n.ID] = n
	if n.Name != "" {
		g.byName[n.Name] = n.ID
	}
	return n.ID
}

// Node returns the node with the given ID, or nil if absent.
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[id]
}

// Rename changes a node's name and updates the name table. The graph
// builder uses this for synthetic nodes whose names embed their own ID,
// which is only known after Add.
func (g *Graph) Rename(id NodeID, name string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	if n.Name != "" && g.byName[n.Name] == id {
		delete(g.byName, n.Name)
	}
	n.Name = name
	if name != "" {
		g.byName[name] = id
	}
}

// Lookup resolves a node name to its ID.
func (g *Graph) Lookup(name string) (NodeID, bool) {
	id, ok := g.byName[name]
	return id, ok
}

// Remove deletes a node from the arena and the name table. The caller is
// responsible for rewiring consumers first; Remove does not touch Order.
func (g *Graph) Remove(id NodeID) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	if n.Name != "" && g.byName[n.Name] == id {
		delete(g.byName, n.Name)
	}
	delete(g.nodes, id)
}

// Len returns the number of nodes in the arena.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// IDs returns all node IDs in ascending order. Useful for deterministic
// iteration where topological order is not yet available.
func (g *Graph) IDs() []NodeID {
	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// Consumers builds the reverse adjacency: for every node, the IDs of nodes
// that read it, in ascending order. Computed on demand because optimizer
// passes invalidate it.
func (g *Graph) Consumers() map[NodeID][]NodeID {
	out := make(map[NodeID][]NodeID, len(g.nodes))
	for _, id := range g.IDs() {
		for _, in := range g.nodes[id].Inputs {
			out[in.Node] = append(out[in.Node], id)
		}
	}
	return out
}

// IsOutput reports whether id is one of the declared output nodes.
func (g *Graph) IsOutput(id NodeID) bool {
	for _, o := range g.Outputs {
		if o == id {
			return true
		}
	}
	return false
}

// IsInput reports whether id is one of the declared input nodes.
func (g *Graph) IsInput(id NodeID) bool {
	for _, i := range g.Inputs {
		if i == id {
			return true
		}
	}
	return false
}
