// Package transcript implements the append-only transcript store with a
// durable JSON mirror (spec.md §4.10).
package transcript

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/discord-voice-lab/internal/logging"
	"github.com/discord-voice-lab/internal/voice/model"
)

// Store is an append-only, in-memory transcript log that mirrors itself to
// a JSON file on disk after every append (spec.md §4.10). Readers see
// point-in-time snapshots; the in-memory list is always authoritative even
// if the last disk write failed (spec.md §7).
type Store struct {
	mu        sync.RWMutex
	path      string
	createdAt time.Time
	entries   []model.TranscriptEntry
}

// diskEnvelope is the persisted-state wire format spec.md §6 specifies:
// a created-at timestamp, the transcript entries (renamed per the external
// field names), and a speaker-id → display-name lookup.
type diskEnvelope struct {
	CreatedAt      time.Time           `json:"created_at"`
	Transcriptions []diskTranscription `json:"transcriptions"`
	UserMap        map[string]string   `json:"user_map"`
}

type diskTranscription struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	GuildID   string    `json:"guild_id,omitempty"`
	ChannelID string    `json:"channel_id,omitempty"`
}

func toDiskTranscription(e model.TranscriptEntry) diskTranscription {
	return diskTranscription{
		UserID:    e.SpeakerID,
		Username:  e.DisplayName,
		Text:      e.Text,
		Timestamp: e.ProducedAt,
		GuildID:   e.GuildID,
		ChannelID: e.ChannelID,
	}
}

func fromDiskTranscription(d diskTranscription) model.TranscriptEntry {
	return model.TranscriptEntry{
		SpeakerID:   d.UserID,
		DisplayName: d.Username,
		Text:        d.Text,
		ProducedAt:  d.Timestamp,
		GuildID:     d.GuildID,
		ChannelID:   d.ChannelID,
	}
}

// New opens (or creates) the transcript store backed by the JSON file at
// path. If the file already exists, its entries are loaded back into memory
// before the first append, so a restart resumes rather than truncates the
// session's transcript (SPEC_FULL.md §4 supplemented feature).
func New(path string) (*Store, error) {
	s := &Store{path: path, createdAt: time.Now()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	var env diskEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		logging.Warnw("transcript: existing file is not valid JSON, starting fresh", "path", path, "err", err)
		return s, nil
	}
	if !env.CreatedAt.IsZero() {
		s.createdAt = env.CreatedAt
	}
	entries := make([]model.TranscriptEntry, 0, len(env.Transcriptions))
	for _, d := range env.Transcriptions {
		entries = append(entries, fromDiskTranscription(d))
	}
	s.entries = entries
	return s, nil
}

// Append adds one entry to the in-memory log and attempts to mirror the
// full log to disk. A disk-write failure is logged, not returned: the
// transcript store never rejects a valid append (spec.md §7).
func (s *Store) Append(entry model.TranscriptEntry) {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	snapshot := append([]model.TranscriptEntry(nil), s.entries...)
	createdAt := s.createdAt
	s.mu.Unlock()

	if s.path == "" {
		return
	}

	env := diskEnvelope{
		CreatedAt:      createdAt,
		Transcriptions: make([]diskTranscription, len(snapshot)),
		UserMap:        make(map[string]string),
	}
	for i, e := range snapshot {
		env.Transcriptions[i] = toDiskTranscription(e)
		if e.SpeakerID != "" {
			env.UserMap[e.SpeakerID] = e.DisplayName
		}
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		logging.Warnw("transcript: marshal failed", "err", err)
		return
	}
	if err := saveFileAtomic(s.path, data, 0o644); err != nil {
		logging.Warnw("transcript: disk mirror write failed, in-memory store remains authoritative", "path", s.path, "err", err)
	}
}

// GetTranscript returns the most recent `limit` entries in insertion order
// (spec.md §6). limit<=0 returns the full log.
func (s *Store) GetTranscript(limit int) []model.TranscriptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit >= len(s.entries) {
		out := make([]model.TranscriptEntry, len(s.entries))
		copy(out, s.entries)
		return out
	}
	out := make([]model.TranscriptEntry, limit)
	copy(out, s.entries[len(s.entries)-limit:])
	return out
}

// saveFileAtomic writes data to path by writing a tmp file in the same
// directory, fsyncing, closing, then renaming into place.
func saveFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
