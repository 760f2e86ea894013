package session

import (
	"slices"
	"sync"
	"time"

	"github.com/joseph-ayodele/quote-compare/internal/compare"
	"github.com/joseph-ayodele/quote-compare/internal/fieldschema"
	"github.com/joseph-ayodele/quote-compare/internal/pipeline"
)

// Batch modes accepted by ApplyBatch callers.
const (
	ModeAppend  = "append"
	ModeReplace = "replace"
)

// State is everything one signed-in user works on: the active field schema,
// the comparison table built from it and the last batch report.
// All methods are safe for concurrent use.
type State struct {
	ID          string
	Username    string
	DisplayName string
	CreatedAt   time.Time

	mu         sync.Mutex
	schema     fieldschema.Resolution
	table      *compare.Table
	lastReport *pipeline.Report
	lastSeen   time.Time
	running    bool
}

func newState(id, username, displayName string, now time.Time) *State {
	s := &State{
		ID:          id,
		Username:    username,
		DisplayName: displayName,
		CreatedAt:   now,
		lastSeen:    now,
	}
	s.resetSchemaLocked(fieldschema.Default())
	return s
}

// Fields returns a copy of the active field names.
func (s *State) Fields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.schema.Fields)
}

// Schema returns the active resolution without its seed rows.
func (s *State) Schema() fieldschema.Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.schema
	res.Fields = slices.Clone(res.Fields)
	res.Seed = nil
	return res
}

// Table returns a deep copy of the comparison table.
func (s *State) Table() *compare.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Clone()
}

// LastReport returns the report of the most recent batch, if any.
func (s *State) LastReport() *pipeline.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

// ApplySchema makes res the active schema and resets the table to its seed rows.
func (s *State) ApplySchema(res fieldschema.Resolution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetSchemaLocked(res)
}

// ResetSchema returns to the built-in fields.
func (s *State) ResetSchema() {
	s.ApplySchema(fieldschema.Default())
}

func (s *State) resetSchemaLocked(res fieldschema.Resolution) {
	s.schema = res
	s.table = s.seedLocked()
	s.lastReport = nil
}

func (s *State) seedLocked() *compare.Table {
	return compare.Seed(s.schema.Fields, s.schema.Seed)
}

// ApplyBatch adds the rows of rep to the table. With replace the table is
// first reset to the schema's seed rows. Columns are never removed.
func (s *State) ApplyBatch(rep pipeline.Report, replace bool) *compare.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	if replace {
		seeded := s.seedLocked()
		// keep columns seen so far
		for _, c := range s.table.Columns {
			if !seeded.HasColumn(c) {
				seeded.Columns = append(seeded.Columns, c)
				for _, r := range seeded.Rows {
					r[c] = ""
				}
			}
		}
		s.table = seeded
	}
	for _, row := range rep.Rows() {
		s.table.Append(row, s.schema.Fields)
	}
	s.lastReport = &rep
	return s.table.Clone()
}

// Begin marks a batch as running. It returns false when one already is,
// so a session never has two concurrent writers.
func (s *State) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

// End clears the running mark set by Begin.
func (s *State) End() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *State) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
