package pipeline

import "errors"

// errSequenceExhausted is wrapped by the voice package's ErrSequenceExhausted
// at the outer API boundary; kept local here to avoid an import cycle with
// package voice (which imports pipeline).
var errSequenceExhausted = errors.New("pipeline: rtp sequence would wrap mid-batch")

// ErrSequenceExhausted is the exported sentinel BuildQueue returns.
var ErrSequenceExhausted = errSequenceExhausted
