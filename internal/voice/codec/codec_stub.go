//go:build !opus
// +build !opus

package codec

import "errors"

// ErrNoOpus is returned by the non-opus build's Encoder/Decoder; builds that
// need real audio must compile with -tags opus (cgo + libopus required).
var ErrNoOpus = errors.New("codec: built without the opus tag")

// Encoder is a no-op stand-in so the module links without cgo/libopus.
type Encoder struct{}

func NewEncoder() (*Encoder, error) { return &Encoder{}, nil }

func (e *Encoder) Encode(pcm []int16) ([]byte, error) { return nil, ErrNoOpus }

// Decoder is a no-op stand-in so the module links without cgo/libopus.
type Decoder struct{}

func NewDecoder() (*Decoder, error) { return &Decoder{}, nil }

// Decode always substitutes silence in the non-opus build.
func (d *Decoder) Decode(packet []byte) (pcm []byte, ok bool) { return SilenceFrame, false }
