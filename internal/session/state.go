// Package session holds one candidate's attempt at a test.
//
// State is a value: every transition returns a new State and leaves the
// receiver untouched, so the transitions can be tested without a server.
// Controller adds locking, the countdown and the snapshot port around it.
package session

import "errors"

var (
	ErrSubmitted       = errors.New("session already submitted")
	ErrIndexOutOfRange = errors.New("question index out of range")
	ErrUnknownQuestion = errors.New("question is not part of this session")
	ErrNoQuestions     = errors.New("no questions available")
)

// State is the full bookkeeping of an attempt.
type State struct {
	TestID    string
	Order     []string
	Position  int
	Answers   map[string]string
	Marks     map[string]bool
	TimeLeft  int
	Submitted bool
}

// NewState starts an attempt over an already ordered sequence. Position is -1
// until there is at least one question.
func NewState(testID string, order []string, seconds int) State {
	pos := -1
	if len(order) > 0 {
		pos = 0
	}
	if seconds < 0 {
		seconds = 0
	}
	return State{
		TestID:   testID,
		Order:    append([]string(nil), order...),
		Position: pos,
		Answers:  map[string]string{},
		Marks:    map[string]bool{},
		TimeLeft: seconds,
	}
}

func (s State) clone() State {
	answers := make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		answers[k] = v
	}
	marks := make(map[string]bool, len(s.Marks))
	for k, v := range s.Marks {
		marks[k] = v
	}
	s.Answers = answers
	s.Marks = marks
	return s
}

func (s State) contains(questionID string) bool {
	for _, id := range s.Order {
		if id == questionID {
			return true
		}
	}
	return false
}

func (s State) guard(questionID string) error {
	if s.Submitted {
		return ErrSubmitted
	}
	if !s.contains(questionID) {
		return ErrUnknownQuestion
	}
	return nil
}

// Select toggles an answer: choosing the option already stored removes it.
func (s State) Select(questionID, option string) (State, error) {
	if err := s.guard(questionID); err != nil {
		return s, err
	}
	next := s.clone()
	if cur, ok := next.Answers[questionID]; ok && cur == option {
		delete(next.Answers, questionID)
	} else {
		next.Answers[questionID] = option
	}
	return next, nil
}

func (s State) Clear(questionID string) (State, error) {
	if err := s.guard(questionID); err != nil {
		return s, err
	}
	next := s.clone()
	delete(next.Answers, questionID)
	return next, nil
}

func (s State) ToggleReview(questionID string) (State, error) {
	if err := s.guard(questionID); err != nil {
		return s, err
	}
	next := s.clone()
	if next.Marks[questionID] {
		delete(next.Marks, questionID)
	} else {
		next.Marks[questionID] = true
	}
	return next, nil
}

// Advance is a no-op on the last question.
func (s State) Advance() (State, error) {
	if s.Submitted {
		return s, ErrSubmitted
	}
	if s.Position < len(s.Order)-1 {
		s.Position++
	}
	return s, nil
}

// Retreat is a no-op on the first question.
func (s State) Retreat() (State, error) {
	if s.Submitted {
		return s, ErrSubmitted
	}
	if s.Position > 0 {
		s.Position--
	}
	return s, nil
}

func (s State) Jump(index int) (State, error) {
	if s.Submitted {
		return s, ErrSubmitted
	}
	if index < 0 || index >= len(s.Order) {
		return s, ErrIndexOutOfRange
	}
	s.Position = index
	return s, nil
}

// Tick removes one second. The returned bool is true only on the tick that
// ran the clock out and submitted the attempt.
func (s State) Tick() (State, bool) {
	if s.Submitted {
		return s, false
	}
	if s.TimeLeft > 0 {
		s.TimeLeft--
	}
	if s.TimeLeft == 0 {
		s.Submitted = true
		return s, true
	}
	return s, false
}

// Submit is one-way; the bool reports whether this call did it.
func (s State) Submit() (State, bool) {
	if s.Submitted {
		return s, false
	}
	s.Submitted = true
	return s, true
}

// Current is the question id at the current position, or "".
func (s State) Current() string {
	if s.Position < 0 || s.Position >= len(s.Order) {
		return ""
	}
	return s.Order[s.Position]
}
