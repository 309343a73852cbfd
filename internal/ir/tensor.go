package ir

import "fmt"

// Tensor is a dense float32 constant read from the model text: affine
// weights and biases, batchnorm statistics, and the scalar constants the
// emitters synthesize. Data is row-major over Dims.
//
// Tensors are created once at parse time and treated as immutable; the
// optimizer builds new tensors instead of mutating folded ones.
type Tensor struct {
	Dims []int64
	Data []float32
}

// NewVector creates a rank-1 tensor.
func NewVector(data []float32) *Tensor {
	return &Tensor{Dims: []int64{int64(len(data))}, Data: data}
}

// NewMatrix creates a rank-2 tensor. Panics if data does not fill
// rows × cols exactly; matrices come from the parser, which sizes them
// from the model text, so a mismatch is a programming error.
func NewMatrix(rows, cols int, data []float32) *Tensor {
	if rows*cols != len(data) {
		panic(fmt.Sprintf("tensor: %dx%d matrix needs %d values, got %d", rows, cols, rows*cols, len(data)))
	}
	return &Tensor{Dims: []int64{int64(rows), int64(cols)}, Data: data}
}

// Rows returns the first dimension, or 0 for an empty tensor.
func (t *Tensor) Rows() int {
	if len(t.Dims) == 0 {
		return 0
	}
	return int(t.Dims[0])
}

// Cols returns the second dimension, or 1 for a vector.
func (t *Tensor) Cols() int {
	if len(t.Dims) < 2 {
		return 1
	}
	return int(t.Dims[1])
}

// Len returns the total number of elements.
func (t *Tensor) Len() int {
	return len(t.Data)
}

// At returns the element at row r, column c of a rank-2 tensor.
func (t *Tensor) At(r, c int) float32 {
	return t.Data[r*t.Cols()+c]
}

// Transposed returns a new rank-2 tensor with rows and columns swapped.
// Emitters use this to turn the model's [out][in] weight layout into the
// [in][out] layout matrix-multiply primitives expect.
func (t *Tensor) Transposed() *Tensor {
	rows, cols := t.Rows(), t.Cols()
	data := make([]float32, len(t.Data))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			data[c*rows+r] = t.Data[r*cols+c]
		}
	}
	return &Tensor{Dims: []int64{int64(cols), int64(rows)}, Data: data}
}
