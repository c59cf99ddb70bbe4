package domain

import (
	"fmt"
	"sort"
	"time"
)

// EntryStatus distinguishes how an AttributionEntry was resolved. An empty
// source set means different things depending on the status.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusMatched   EntryStatus = "matched"
	EntryStatusUnmatched EntryStatus = "unmatched"
	EntryStatusFailed    EntryStatus = "failed"
)

// SourceMatch is one supporting source document for a generated chunk.
// Similarity is the best score among the source's chunks; the LLM judge
// strategy reports no score and leaves it at zero.
type SourceMatch struct {
	DocumentID string
	Similarity float64
}

// AttributionEntry maps one generated chunk to the set of source documents
// that support it.
type AttributionEntry struct {
	DocumentID string
	ChunkIndex int
	Sources    []SourceMatch
	Status     EntryStatus
	Error      string
}

// NewAttributionEntry builds an entry from per-source best scores, collapsing
// to one SourceMatch per source document. Sources are ordered by descending
// similarity, then by source id.
func NewAttributionEntry(chunk ChunkID, best map[string]float64) AttributionEntry {
	sources := make([]SourceMatch, 0, len(best))
	for id, score := range best {
		sources = append(sources, SourceMatch{DocumentID: id, Similarity: score})
	}
	SortSourceMatches(sources)

	status := EntryStatusMatched
	if len(sources) == 0 {
		status = EntryStatusUnmatched
	}
	return AttributionEntry{
		DocumentID: chunk.DocumentID,
		ChunkIndex: chunk.Index,
		Sources:    sources,
		Status:     status,
	}
}

// NewFailedAttributionEntry builds an entry for a chunk that could not be
// attributed at all.
func NewFailedAttributionEntry(chunk ChunkID, cause error) AttributionEntry {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return AttributionEntry{
		DocumentID: chunk.DocumentID,
		ChunkIndex: chunk.Index,
		Sources:    []SourceMatch{},
		Status:     EntryStatusFailed,
		Error:      msg,
	}
}

// SortSourceMatches orders by descending similarity, then ascending id.
func SortSourceMatches(sources []SourceMatch) {
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Similarity != sources[j].Similarity {
			return sources[i].Similarity > sources[j].Similarity
		}
		return sources[i].DocumentID < sources[j].DocumentID
	})
}

// ChunkID returns the generated chunk this entry describes.
func (e AttributionEntry) ChunkID() ChunkID {
	return ChunkID{DocumentID: e.DocumentID, Index: e.ChunkIndex}
}

// SourceIDs returns the supporting source document ids in reporting order.
func (e AttributionEntry) SourceIDs() []string {
	ids := make([]string, len(e.Sources))
	for i, s := range e.Sources {
		ids[i] = s.DocumentID
	}
	return ids
}

// Failed reports whether the chunk was unattributable.
func (e AttributionEntry) Failed() bool {
	return e.Status == EntryStatusFailed
}

// AttributionStrategy selects the attribution implementation.
type AttributionStrategy string

const (
	StrategySimilarity AttributionStrategy = "similarity"
	StrategyLLMJudge   AttributionStrategy = "llm"
)

// ParseAttributionStrategy validates a strategy name.
func ParseAttributionStrategy(s string) (AttributionStrategy, error) {
	switch AttributionStrategy(s) {
	case StrategySimilarity, StrategyLLMJudge:
		return AttributionStrategy(s), nil
	case "":
		return StrategySimilarity, nil
	}
	return "", NewConfigurationError("unknown attribution strategy %q", s)
}

// ValidateThreshold rejects thresholds outside [0,1].
func ValidateThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 || threshold != threshold {
		return NewConfigurationError("attribution threshold must be within [0,1], got %v", threshold)
	}
	return nil
}

// RunState is a stage of an attribution run.
type RunState string

const (
	RunStatePending   RunState = "pending"
	RunStateChunked   RunState = "chunked"
	RunStateEmbedded  RunState = "embedded"
	RunStateMatched   RunState = "matched"
	RunStatePersisted RunState = "persisted"
	RunStateFailed    RunState = "failed"
)

var runTransitions = map[RunState][]RunState{
	RunStatePending:  {RunStateChunked},
	RunStateChunked:  {RunStateEmbedded},
	RunStateEmbedded: {RunStateMatched, RunStateFailed},
	RunStateMatched:  {RunStatePersisted, RunStateFailed},
}

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	return s == RunStatePersisted || s == RunStateFailed
}

// RunTransition records when a run entered a state.
type RunTransition struct {
	State RunState
	At    time.Time
}

// AttributionRun tracks one attribution pass over a generated document.
type AttributionRun struct {
	ID         string
	DocumentID string
	Strategy   AttributionStrategy
	Threshold  float64
	State      RunState
	Entries    []AttributionEntry
	History    []RunTransition
	Error      string
}

// NewAttributionRun creates a run in the pending state.
func NewAttributionRun(id, documentID string, strategy AttributionStrategy, threshold float64, now time.Time) *AttributionRun {
	return &AttributionRun{
		ID:         id,
		DocumentID: documentID,
		Strategy:   strategy,
		Threshold:  threshold,
		State:      RunStatePending,
		History:    []RunTransition{{State: RunStatePending, At: now}},
	}
}

// Transition moves the run to the next state, rejecting moves the state
// machine does not allow.
func (r *AttributionRun) Transition(to RunState, now time.Time) error {
	for _, allowed := range runTransitions[r.State] {
		if allowed == to {
			r.State = to
			r.History = append(r.History, RunTransition{State: to, At: now})
			return nil
		}
	}
	return NewDomainErrorWithCause(ErrCodeInvalidOperation, ErrInvalidStateTransition.Message,
		fmt.Errorf("%s -> %s", r.State, to))
}

// Fail moves the run to the failed state and records the reason.
func (r *AttributionRun) Fail(reason error, now time.Time) error {
	if err := r.Transition(RunStateFailed, now); err != nil {
		return err
	}
	if reason != nil {
		r.Error = reason.Error()
	}
	return nil
}

// UsableEntries counts entries that were not failed.
func (r *AttributionRun) UsableEntries() int {
	n := 0
	for _, e := range r.Entries {
		if !e.Failed() {
			n++
		}
	}
	return n
}
