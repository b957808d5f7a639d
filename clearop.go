package framegraph

import "github.com/gogpu/framegraph/merge"

// ColorClear builds a colour attachment's clear encoding with the given
// RGBA clear value.
func ColorClear(r, g, b, a float64) merge.ColorClearOp {
	return merge.ColorClearOp{Action: merge.ClearClear, Value: merge.ColorClearValue{R: r, G: g, B: b, A: a}}
}

// ColorKeep preserves a colour attachment's existing contents.
func ColorKeep() merge.ColorClearOp { return merge.ColorClearOp{Action: merge.ClearKeep} }

// ColorDiscard leaves a colour attachment's existing contents undefined.
func ColorDiscard() merge.ColorClearOp { return merge.ColorClearOp{Action: merge.ClearDiscard} }

// DepthClear builds a depth attachment's clear encoding.
func DepthClear(value float64) merge.DepthClearOp {
	return merge.DepthClearOp{Action: merge.ClearClear, Value: value}
}

// DepthKeep preserves a depth attachment's existing contents.
func DepthKeep() merge.DepthClearOp { return merge.DepthClearOp{Action: merge.ClearKeep} }

// DepthDiscard leaves a depth attachment's existing contents undefined.
func DepthDiscard() merge.DepthClearOp { return merge.DepthClearOp{Action: merge.ClearDiscard} }

// StencilClear builds a stencil attachment's clear encoding.
func StencilClear(value uint32) merge.StencilClearOp {
	return merge.StencilClearOp{Action: merge.ClearClear, Value: value}
}

// StencilKeep preserves a stencil attachment's existing contents.
func StencilKeep() merge.StencilClearOp { return merge.StencilClearOp{Action: merge.ClearKeep} }

// StencilDiscard leaves a stencil attachment's existing contents undefined.
func StencilDiscard() merge.StencilClearOp { return merge.StencilClearOp{Action: merge.ClearDiscard} }
