package infer

import "context"

// Tensor is a named-tensor payload exchanged with an inference engine.
// Exactly one of the data slices is populated; Shape uses row-major order.
type Tensor struct {
	Shape []int64
	F32   []float32
	I32   []int32
	I64   []int64
}

// F32Tensor builds a float32 tensor.
func F32Tensor(shape []int64, data []float32) Tensor {
	return Tensor{Shape: shape, F32: data}
}

// I32Tensor builds an int32 tensor.
func I32Tensor(shape []int64, data []int32) Tensor {
	return Tensor{Shape: shape, I32: data}
}

// I64Tensor builds an int64 tensor.
func I64Tensor(shape []int64, data []int64) Tensor {
	return Tensor{Shape: shape, I64: data}
}

// Elems returns the element count implied by the shape.
func (t Tensor) Elems() int {
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}

// Engine abstracts one stateless-per-call inference graph: given named input
// tensors it returns named output tensors or fails. Implementations enforce
// per-call exclusivity internally, so concurrent transcriptions serialize per
// engine without serializing control-plane reads.
type Engine interface {
	Run(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error)
	Close() error
}
