package visit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// History is the ordered question/answer log for one visit's intake stage.
// Indices are contiguous from 0; turns are never removed or reordered, and
// an edit replaces only a turn's answer.
type History struct {
	visitID uuid.UUID
	turns   []IntakeTurn
}

// NewHistory wraps turns loaded from storage, validating index contiguity.
func NewHistory(visitID uuid.UUID, turns []IntakeTurn) (*History, error) {
	for i, t := range turns {
		if t.Index != i {
			return nil, fmt.Errorf("intake history corrupt: turn at position %d has index %d", i, t.Index)
		}
	}
	h := &History{visitID: visitID}
	h.turns = append(h.turns, turns...)
	return h, nil
}

// Len returns the number of answered turns.
func (h *History) Len() int { return len(h.turns) }

// Turns returns a copy of the turn sequence.
func (h *History) Turns() []IntakeTurn {
	out := make([]IntakeTurn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Turn returns the turn at index, if present.
func (h *History) Turn(index int) (IntakeTurn, bool) {
	if index < 0 || index >= len(h.turns) {
		return IntakeTurn{}, false
	}
	return h.turns[index], true
}

// Questions returns the asked questions in order.
func (h *History) Questions() []string {
	out := make([]string, len(h.turns))
	for i, t := range h.turns {
		out[i] = t.Question
	}
	return out
}

// Answers returns the given answers in order.
func (h *History) Answers() []string {
	out := make([]string, len(h.turns))
	for i, t := range h.turns {
		out[i] = t.Answer
	}
	return out
}

// Append records a newly answered question at the next contiguous index.
func (h *History) Append(question, answer string, answeredAt time.Time) IntakeTurn {
	turn := IntakeTurn{
		ID:         uuid.New(),
		VisitID:    h.visitID,
		Index:      len(h.turns),
		Question:   question,
		Answer:     answer,
		AnsweredAt: answeredAt,
	}
	h.turns = append(h.turns, turn)
	return turn
}

// ReplaceAnswer mutates only the answer of the turn at index. Question and
// index are untouched and no turns move.
func (h *History) ReplaceAnswer(index int, newAnswer string) (IntakeTurn, error) {
	if index < 0 || index >= len(h.turns) {
		return IntakeTurn{}, &StaleStateError{
			Reason: fmt.Sprintf("turn index %d out of range (history has %d turns)", index, len(h.turns)),
		}
	}
	h.turns[index].Answer = newAnswer
	return h.turns[index], nil
}
