package optimize

import "github.com/tz301/kaldi-onnx-tf/internal/ir"

// fuseBatchNorms folds each batchnorm into the affine that feeds it,
// when that affine has no other reader. With y = scale⊙(W·x + b) + shift
// the fold is W' = scale⊙W (row-wise) and b' = scale⊙b + shift; an
// affine without bias gains one equal to shift.
func fuseBatchNorms(g *ir.Graph) int {
	consumers := g.Consumers()
	fused := 0
	for _, id := range g.IDs() {
		bn := g.Node(id)
		if bn == nil || bn.Kind != ir.OpBatchNorm {
			continue
		}
		if bn.Inputs[0].Offset != 0 {
			continue
		}
		aff := g.Node(bn.Inputs[0].Node)
		if aff.Kind != ir.OpAffine || aff.Activation != "" {
			continue
		}
		if soleConsumer(g, consumers, aff.ID) != id {
			continue
		}

		rows, cols := aff.Weights.Rows(), aff.Weights.Cols()
		w := make([]float32, rows*cols)
		for r := 0; r < rows; r++ {
			s := bn.BNScale.Data[r]
			for c := 0; c < cols; c++ {
				w[r*cols+c] = s * aff.Weights.At(r, c)
			}
		}
		b := make([]float32, rows)
		for r := 0; r < rows; r++ {
			if aff.Bias != nil {
				b[r] = bn.BNScale.Data[r]*aff.Bias.Data[r] + bn.BNShift.Data[r]
			} else {
				b[r] = bn.BNShift.Data[r]
			}
		}
		aff.Weights = ir.NewMatrix(rows, cols, w)
		aff.Bias = ir.NewVector(b)

		redirect(g, id, ir.Input{Node: aff.ID})
		fused++
		consumers = g.Consumers()
	}
	return fused
}

// fuseActivations attaches a nonlinearity to the affine producing its
// input, when the affine has no other reader. The emitters still write
// two target ops, but the fused form survives dead-node elimination as
// one IR node and keeps the affine's parameter names stable.
func fuseActivations(g *ir.Graph) int {
	consumers := g.Consumers()
	fused := 0
	for _, id := range g.IDs() {
		act := g.Node(id)
		if act == nil || (act.Kind != ir.OpReLU && act.Kind != ir.OpLogSoftmax) {
			continue
		}
		if g.IsOutput(id) || act.Inputs[0].Offset != 0 {
			continue
		}
		aff := g.Node(act.Inputs[0].Node)
		if aff.Kind != ir.OpAffine || aff.Activation != "" {
			continue
		}
		if soleConsumer(g, consumers, aff.ID) != id {
			continue
		}

		aff.Activation = act.Kind
		// The fused node takes over the activation's public name, so the
		// emitted tensor keeps the name downstream tooling expects.
		g.Rename(aff.ID, act.Name)
		redirect(g, id, ir.Input{Node: aff.ID})
		fused++
		consumers = g.Consumers()
	}
	return fused
}
