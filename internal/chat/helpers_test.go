package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// -- Scripted surface --

// fakeTurn is one rendered conversation turn of the scripted surface.
type fakeTurn struct {
	role string
	text string
}

// pendingReply is an assistant turn that renders after a number of Turns calls.
type pendingReply struct {
	text  string
	after int
}

// scriptedSurface emulates a chat page: each submission renders a user turn
// immediately and, if a reply is scripted, an assistant turn a few polls later.
type scriptedSurface struct {
	mu sync.Mutex

	// inputAfter is the number of FindInput calls answered with ErrNotFound
	// before an input is returned. Negative means never.
	inputAfter int
	findCalls  int

	// replies maps question text to the assistant reply. A missing or empty
	// entry leaves the question unanswered.
	replies map[string]string
	// replyDelay is the number of Turns calls before a reply renders.
	replyDelay int

	submitErr   error
	turns       []fakeTurn
	pending     []pendingReply
	submitted   []string
	submittedAt []time.Time
	turnsCalls  int
	// turnsErrs is the number of upcoming Turns calls that fail.
	turnsErrs int
}

func newScriptedSurface(replies map[string]string) *scriptedSurface {
	return &scriptedSurface{replies: replies}
}

func (s *scriptedSurface) FindInput(ctx context.Context) (Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.inputAfter < 0 || s.findCalls <= s.inputAfter {
		return nil, ErrNotFound
	}
	return "textarea", nil
}

func (s *scriptedSurface) Submit(ctx context.Context, in Input, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return s.submitErr
	}
	s.submitted = append(s.submitted, text)
	s.submittedAt = append(s.submittedAt, time.Now())
	s.turns = append(s.turns, fakeTurn{role: "user", text: text})
	if reply := s.replies[text]; reply != "" {
		s.pending = append(s.pending, pendingReply{text: reply, after: s.replyDelay})
	}
	return nil
}

func (s *scriptedSurface) Turns(ctx context.Context) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnsCalls++
	if s.turnsErrs > 0 {
		s.turnsErrs--
		return nil, errDetached
	}

	var still []pendingReply
	for _, p := range s.pending {
		if p.after <= 0 {
			s.turns = append(s.turns, fakeTurn{role: "assistant", text: p.text})
			continue
		}
		p.after--
		still = append(still, p)
	}
	s.pending = still

	out := make([]Turn, len(s.turns))
	for i, t := range s.turns {
		out[i] = t
	}
	return out, nil
}

func (s *scriptedSurface) AssistantText(ctx context.Context, turn Turn) (string, error) {
	t, ok := turn.(fakeTurn)
	if !ok || t.role != "assistant" {
		return "", ErrNotFound
	}
	return t.text, nil
}

// failTurns makes the next n Turns calls fail.
func (s *scriptedSurface) failTurns(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnsErrs = n
}

func (s *scriptedSurface) Submitted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.submitted...)
}

// -- Mock surface --

// mockSurface is a testify mock of Surface for call-level assertions.
type mockSurface struct {
	mock.Mock
}

func (m *mockSurface) FindInput(ctx context.Context) (Input, error) {
	args := m.Called(ctx)
	return args.Get(0), args.Error(1)
}

func (m *mockSurface) Submit(ctx context.Context, in Input, text string) error {
	return m.Called(ctx, in, text).Error(0)
}

func (m *mockSurface) Turns(ctx context.Context) ([]Turn, error) {
	args := m.Called(ctx)
	turns, _ := args.Get(0).([]Turn)
	return turns, args.Error(1)
}

func (m *mockSurface) AssistantText(ctx context.Context, turn Turn) (string, error) {
	args := m.Called(ctx, turn)
	return args.String(0), args.Error(1)
}

// -- Recorder --

type recorded struct {
	runID    string
	question Question
	outcome  Outcome
}

type memoryRecorder struct {
	mu      sync.Mutex
	entries []recorded
	err     error
}

func (r *memoryRecorder) Record(ctx context.Context, runID string, q Question, o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recorded{runID: runID, question: q, outcome: o})
	return r.err
}

// recorderFunc adapts a function to Recorder.
type recorderFunc func(q Question, o Outcome)

func (f recorderFunc) Record(ctx context.Context, runID string, q Question, o Outcome) error {
	f(q, o)
	return nil
}

var errDetached = errors.New("node is detached from document")

// questions builds a 1-indexed question list from texts.
func questions(texts ...string) []Question {
	qs := make([]Question, len(texts))
	for i, t := range texts {
		qs[i] = Question{Index: i + 1, Row: i, Text: t}
	}
	return qs
}
