// Package checkpoint persists and restores the durable send cursor that
// lets a Send invocation resume after cancellation or a crash without
// re-sending or double-counting (spec.md §3, Checkpoint; §4.6). The
// on-disk format is a small JSON object, rewritten atomically via a
// temp-file-then-rename, the same durability discipline the corpus uses
// for its own append-only report stores.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
)

const filePerm = 0o640

// State is the full on-disk checkpoint shape (spec.md §6, Checkpoint
// JSON).
type State struct {
	RunID            string                `json:"run_id"`
	DoneUnits        int                   `json:"done_units"`
	DoneFiles        int                   `json:"done_files"`
	UpdatedAt        string                `json:"updated_at"`
	CheckpointMode   domain.CheckpointMode `json:"checkpoint_mode"`
	CheckpointReason string                `json:"checkpoint_reason"`
}

// Store manages one checkpoint file's lifecycle: load, monotonic
// advance, and atomic rewrite.
type Store struct {
	Path  string
	Clock *clockid.Clock
}

// NewStore returns a Store writing to path, using clock for updated_at
// stamps.
func NewStore(path string, clock *clockid.Clock) *Store {
	return &Store{Path: path, Clock: clock}
}

// Load reads the checkpoint file. A missing file is not an error; it
// returns the zero State, matching "If absent, start from zero"
// (spec.md §4.6 pre-flight step 2).
func (s *Store) Load() (State, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}

		return State{}, fmt.Errorf("checkpoint: read %s: %w", s.Path, err)
	}

	var st State

	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("checkpoint: decode %s: %w", s.Path, err)
	}

	return st, nil
}

// Save rewrites the checkpoint atomically: done_units/done_files must be
// monotonically non-decreasing within one Send invocation (spec.md §5,
// Ordering guarantees), which callers enforce by always deriving the new
// state from the value Save last returned or Load yielded.
func (s *Store) Save(runID string, doneUnits, doneFiles int, mode domain.CheckpointMode, reason string) (State, error) {
	st := State{
		RunID:            runID,
		DoneUnits:        doneUnits,
		DoneFiles:        doneFiles,
		UpdatedAt:        s.clock().NowISO(),
		CheckpointMode:   mode,
		CheckpointReason: reason,
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return State{}, fmt.Errorf("checkpoint: encode: %w", err)
	}

	tmp := s.Path + ".tmp"

	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return State{}, fmt.Errorf("checkpoint: write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, s.Path); err != nil {
		return State{}, fmt.Errorf("checkpoint: rename %s: %w", tmp, err)
	}

	return st, nil
}

func (s *Store) clock() *clockid.Clock {
	if s.Clock == nil {
		return clockid.Default
	}

	return s.Clock
}
