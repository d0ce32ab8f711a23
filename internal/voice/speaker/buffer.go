// Package speaker implements the per-speaker utterance buffer (spec.md
// §3/§4.9/§4.10): accumulating decoded PCM per SSRC, binding SSRCs to user
// identities as op-5 speaking events arrive, and flushing utterances on a
// silence timeout or hard cap.
package speaker

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/discord-voice-lab/internal/logging"
	"github.com/discord-voice-lab/internal/voice/model"
)

const (
	// DefaultSilenceTimeout is the default gap after which an open utterance
	// with no new chunks is flushed (spec.md §3).
	DefaultSilenceTimeout = 2 * time.Second
	// DefaultHardCap is the default maximum utterance duration before a
	// forced flush (spec.md §3).
	DefaultHardCap = 10 * time.Second

	bytesPerMs = 48000 * 2 * 2 / 1000 // 48kHz, stereo, 16-bit
)

type slot struct {
	pcm           []byte
	startedAt     time.Time
	lastChunkAt   time.Time
	correlationID string
	userID        string   // "" until bound or flush-time late binding
	displayName   string
	placeholder   bool
}

func durationOf(pcmLen int) time.Duration {
	return time.Duration(pcmLen/bytesPerMs) * time.Millisecond
}

// FlushFunc receives a completed utterance plus the correlation id it was
// accumulated under.
type FlushFunc func(u model.Utterance, correlationID string)

// Buffer accumulates PCM per SSRC and flushes utterances per spec.md §3/§4.9.
type Buffer struct {
	mu             sync.Mutex
	slots          map[uint32]*slot
	bindings       map[uint32]model.SpeakerBinding
	silenceTimeout time.Duration
	hardCap        time.Duration
	onFlush        FlushFunc
}

// New builds a Buffer with the given silence timeout and hard cap (use
// DefaultSilenceTimeout/DefaultHardCap for spec.md's defaults).
func New(silenceTimeout, hardCap time.Duration, onFlush FlushFunc) *Buffer {
	return &Buffer{
		slots:          make(map[uint32]*slot),
		bindings:       make(map[uint32]model.SpeakerBinding),
		silenceTimeout: silenceTimeout,
		hardCap:        hardCap,
		onFlush:        onFlush,
	}
}

// Bind records an SSRC→user identity mapping from an op-5 speaking event
// (spec.md §3). If an utterance is already open on this SSRC under a
// placeholder identity, it is re-parented to the real identity in place —
// the open utterance is not flushed early just because a binding arrived.
func (b *Buffer) Bind(ssrc uint32, userID, displayName string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bindings[ssrc] = model.SpeakerBinding{SSRC: ssrc, UserID: userID, DisplayName: displayName, Bound: true}

	if s, ok := b.slots[ssrc]; ok && s.placeholder {
		s.userID = userID
		s.displayName = displayName
		s.placeholder = false
	}
}

// Append adds one decoded PCM chunk to the SSRC's open utterance, creating
// it (under a placeholder identity if unbound) if none is open. A chunk that
// would push the slot past the hard cap forces an immediate flush of the
// slot as it stood *before* this chunk; the chunk itself then begins the
// next utterance rather than being appended to the one just flushed
// (spec.md §3/§4.9).
func (b *Buffer) Append(ssrc uint32, pcm []byte, correlationID string) {
	if len(pcm) == 0 {
		return
	}

	b.mu.Lock()
	if s, ok := b.slots[ssrc]; ok && durationOf(len(s.pcm)+len(pcm)) >= b.hardCap {
		b.mu.Unlock()
		b.flush(ssrc)
		b.mu.Lock()
	}

	s, ok := b.slots[ssrc]
	if !ok {
		binding, bound := b.bindings[ssrc]
		s = &slot{startedAt: time.Now()}
		if bound {
			s.userID = binding.UserID
			s.displayName = binding.DisplayName
		} else {
			s.userID = model.PlaceholderUserID(ssrc)
			s.displayName = s.userID
			s.placeholder = true
		}
		if correlationID != "" {
			s.correlationID = correlationID
		} else {
			s.correlationID = uuid.NewString()
		}
		b.slots[ssrc] = s
	}
	s.pcm = append(s.pcm, pcm...)
	s.lastChunkAt = time.Now()

	hardCapHit := durationOf(len(s.pcm)) >= b.hardCap
	b.mu.Unlock()

	if hardCapHit {
		b.flush(ssrc)
	}
}

// Sweep flushes every slot whose silence timeout has elapsed. Callers drive
// this on a short ticker (spec.md §4.9's silence-timeout flush path).
func (b *Buffer) Sweep() {
	now := time.Now()
	var expired []uint32

	b.mu.Lock()
	for ssrc, s := range b.slots {
		if now.Sub(s.lastChunkAt) >= b.silenceTimeout {
			expired = append(expired, ssrc)
		}
	}
	b.mu.Unlock()

	for _, ssrc := range expired {
		b.flush(ssrc)
	}
}

// flush is destructive: it removes the slot and hands its PCM to onFlush
// (spec.md §3: "its bytes are moved into the STT submission and the slot is
// emptied").
func (b *Buffer) flush(ssrc uint32) {
	b.mu.Lock()
	s, ok := b.slots[ssrc]
	if !ok || len(s.pcm) == 0 {
		delete(b.slots, ssrc)
		b.mu.Unlock()
		return
	}
	delete(b.slots, ssrc)
	b.mu.Unlock()

	u := model.Utterance{
		SpeakerID: s.userID,
		StartedAt: s.startedAt,
		EndedAt:   time.Now(),
		PCM:       s.pcm,
	}
	logging.Debugw("flushing utterance", "ssrc", ssrc, "speaker", s.userID, "duration_ms", int(durationOf(len(s.pcm)).Milliseconds()))

	if b.onFlush != nil {
		b.onFlush(u, s.correlationID)
	}
}

// FlushAll force-flushes every open slot, e.g. on LeaveVoice.
func (b *Buffer) FlushAll() {
	b.mu.Lock()
	ssrcs := make([]uint32, 0, len(b.slots))
	for ssrc := range b.slots {
		ssrcs = append(ssrcs, ssrc)
	}
	b.mu.Unlock()

	for _, ssrc := range ssrcs {
		b.flush(ssrc)
	}
}
