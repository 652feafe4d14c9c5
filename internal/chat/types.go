// Package chat drives a single conversational web surface through a batch of
// questions: it finds the input control, submits each question, waits for the
// assistant's reply and records one Outcome per question.
package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInputControl means no ready input control appeared within the
	// locator's attempt budget. It is fatal to the run.
	ErrNoInputControl = errors.New("no input control found")
	// ErrNoResponse means a question was submitted but no completed assistant
	// reply was observed before the poller's timeout. The run continues.
	ErrNoResponse = errors.New("no response observed")
	// ErrNotFound is returned by a Surface when the element it was asked for
	// is not currently rendered.
	ErrNotFound = errors.New("element not found")
)

// Question is one entry of the batch. It is immutable once loaded.
type Question struct {
	// Index is the 1-based position within the processed sequence.
	Index int
	// Row is the 0-based data row in the source table, used to write the
	// outcome back next to the question.
	Row  int
	Text string
}

// FailureReason classifies an unanswered question.
type FailureReason int

const (
	// NoFailure is the zero value carried by answered outcomes.
	NoFailure FailureReason = iota
	NoInputControl
	NoResponse
)

func (r FailureReason) String() string {
	switch r {
	case NoFailure:
		return "none"
	case NoInputControl:
		return "no_input_control"
	case NoResponse:
		return "no_response"
	default:
		return fmt.Sprintf("FailureReason(%d)", int(r))
	}
}

// Err returns the sentinel error matching the reason, or nil.
func (r FailureReason) Err() error {
	switch r {
	case NoInputControl:
		return ErrNoInputControl
	case NoResponse:
		return ErrNoResponse
	default:
		return nil
	}
}

// Reason maps an error returned by the locator or poller to its FailureReason.
func Reason(err error) FailureReason {
	switch {
	case errors.Is(err, ErrNoInputControl):
		return NoInputControl
	case errors.Is(err, ErrNoResponse):
		return NoResponse
	default:
		return NoFailure
	}
}

// Cell values written in place of an answer.
const (
	NoInputControlText = "❌ 입력창 없음"
	NoResponseText     = "❌ 응답 없음"
)

// Outcome is the recorded result for one Question: either an answer or a failure.
type Outcome struct {
	Text    string
	Failure FailureReason
}

// Answered builds a successful outcome.
func Answered(text string) Outcome { return Outcome{Text: text} }

// Failed builds a failed outcome.
func Failed(reason FailureReason) Outcome { return Outcome{Failure: reason} }

// OK reports whether the question was answered.
func (o Outcome) OK() bool { return o.Failure == NoFailure }

// String renders the value persisted for the outcome.
func (o Outcome) String() string {
	switch o.Failure {
	case NoFailure:
		return o.Text
	case NoInputControl:
		return NoInputControlText
	case NoResponse:
		return NoResponseText
	default:
		return o.Failure.String()
	}
}

// State is the position of a question in the session state machine.
type State string

const (
	StatePending        State = "pending"
	StateAcquiring      State = "acquiring"
	StateSubmitting     State = "submitting"
	StateAwaiting       State = "awaiting"
	StateRecorded       State = "recorded"
	StateAbortedNoInput State = "aborted_no_input"
)

// Result is what a run produced. Outcomes[i] belongs to the i-th question
// handed to Run; questions past len(Outcomes) were never attempted.
type Result struct {
	RunID    string
	Outcomes []Outcome
	// Aborted is set when the run stopped early because no input control appeared.
	Aborted bool
}

// Attempted is the number of questions that received an outcome.
func (r Result) Attempted() int { return len(r.Outcomes) }
