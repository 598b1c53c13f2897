package session

import (
	"context"
	"fmt"
)

const snapshotKeyPrefix = "mockTestState_"

// SnapshotKey is the side-store key for a test's saved session.
func SnapshotKey(testID string) string {
	return snapshotKeyPrefix + testID
}

// Snapshot is the resumable part of a session. Order and TimeLeft extend the
// classic {currentIndex, answers, visitMarks} payload and are optional.
type Snapshot struct {
	CurrentIndex int               `json:"currentIndex"`
	Answers      map[string]string `json:"answers"`
	VisitMarks   map[string]bool   `json:"visitMarks"`
	Order        []string          `json:"order,omitempty"`
	TimeLeft     *int              `json:"timeLeft,omitempty"`
}

// SnapshotStore persists snapshots per candidate and test. Load returns
// (nil, nil) when nothing was saved.
type SnapshotStore interface {
	Save(ctx context.Context, candidateID, testID string, snap Snapshot) error
	Load(ctx context.Context, candidateID, testID string) (*Snapshot, error)
	Clear(ctx context.Context, candidateID, testID string) error
}

// ScopedKey namespaces SnapshotKey by candidate for shared stores.
func ScopedKey(candidateID, testID string) string {
	return fmt.Sprintf("%s:%s", candidateID, SnapshotKey(testID))
}

// Snapshot captures the resumable fields of s.
func (s State) Snapshot() Snapshot {
	next := s.clone()
	left := s.TimeLeft
	return Snapshot{
		CurrentIndex: s.Position,
		Answers:      next.Answers,
		VisitMarks:   next.Marks,
		Order:        append([]string(nil), s.Order...),
		TimeLeft:     &left,
	}
}

// Resume overlays a snapshot on a freshly built state. Entries for questions
// outside the sequence are dropped, a saved order is reused only when it is
// a permutation of the fetched questions, and saved time only ever shortens
// the clock.
func (s State) Resume(snap Snapshot) State {
	next := s.clone()
	if len(snap.Order) > 0 && IsPermutation(snap.Order, s.Order) {
		next.Order = append([]string(nil), snap.Order...)
	}
	for id, opt := range snap.Answers {
		if next.contains(id) {
			next.Answers[id] = opt
		}
	}
	for id, marked := range snap.VisitMarks {
		if marked && next.contains(id) {
			next.Marks[id] = true
		}
	}
	if snap.CurrentIndex >= 0 && snap.CurrentIndex < len(next.Order) {
		next.Position = snap.CurrentIndex
	}
	if snap.TimeLeft != nil && *snap.TimeLeft >= 0 && *snap.TimeLeft < next.TimeLeft {
		next.TimeLeft = *snap.TimeLeft
	}
	return next
}
