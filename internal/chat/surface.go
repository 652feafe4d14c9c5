package chat

import "context"

// Input is an opaque handle to a located input control. Only the Surface that
// produced it knows how to use it.
type Input any

// Turn is an opaque handle to one rendered conversation turn.
type Turn any

// Surface is the driven chat page. Implementations own the browser; the
// session loop only borrows it for the duration of a run and is its sole user.
type Surface interface {
	// FindInput returns a ready text input, or ErrNotFound if none is rendered yet.
	FindInput(ctx context.Context) (Input, error)
	// Submit types text into the input and presses Enter.
	Submit(ctx context.Context, in Input, text string) error
	// Turns enumerates the currently rendered conversation turns, oldest first.
	Turns(ctx context.Context) ([]Turn, error)
	// AssistantText returns the text of the assistant-authored part of a turn,
	// or ErrNotFound if the turn has none (user turn, or still streaming).
	AssistantText(ctx context.Context, turn Turn) (string, error)
}
