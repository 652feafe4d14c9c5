package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/askbatch/internal/chat"
	"github.com/xkilldash9x/askbatch/internal/config"
	"github.com/xkilldash9x/askbatch/internal/observability"
)

// fastConfig keeps the session loop at millisecond scale.
const fastConfig = `
logger:
  level: error
  format: json
session:
  input_attempts: 3
  input_interval: 1ms
  response_timeout: 20ms
  response_interval: 1ms
  settle_interval: 1ms
browser:
  startup_wait: 0s
`

// echoSurface answers every question with "Echo: <question>" unless the
// question is listed in silent. With noInput set it never offers an input.
type echoSurface struct {
	mu       sync.Mutex
	noInput  bool
	silent   map[string]bool
	onSubmit func(text string)
	turns    []chat.Turn
	asked    []string
}

type echoTurn struct {
	assistant bool
	text      string
}

func (s *echoSurface) FindInput(ctx context.Context) (chat.Input, error) {
	if s.noInput {
		return nil, chat.ErrNotFound
	}
	return "textarea", nil
}

func (s *echoSurface) Submit(ctx context.Context, in chat.Input, text string) error {
	s.mu.Lock()
	s.asked = append(s.asked, text)
	s.turns = append(s.turns, echoTurn{text: text})
	if !s.silent[text] {
		s.turns = append(s.turns, echoTurn{assistant: true, text: "Echo: " + text})
	}
	hook := s.onSubmit
	s.mu.Unlock()
	if hook != nil {
		hook(text)
	}
	return nil
}

func (s *echoSurface) Turns(ctx context.Context) ([]chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Turn(nil), s.turns...), nil
}

func (s *echoSurface) AssistantText(ctx context.Context, turn chat.Turn) (string, error) {
	t := turn.(echoTurn)
	if !t.assistant {
		return "", chat.ErrNotFound
	}
	return t.text, nil
}

// fakeJournal records the journal calls of a run.
type fakeJournal struct {
	mu       sync.Mutex
	started  string
	total    int
	outcomes []chat.Outcome
	finished  bool
	attempted int
	aborted   bool
	closed    bool
}

func (j *fakeJournal) StartRun(ctx context.Context, runID, source string, total int) error {
	j.started, j.total = runID, total
	return nil
}

func (j *fakeJournal) Record(ctx context.Context, runID string, q chat.Question, o chat.Outcome) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outcomes = append(j.outcomes, o)
	return nil
}

func (j *fakeJournal) FinishRun(ctx context.Context, runID string, attempted int, aborted bool) error {
	j.finished, j.attempted, j.aborted = true, attempted, aborted
	return nil
}

// testEnv wires the command to a scripted surface and temporary files.
type testEnv struct {
	dir         string
	cfgPath     string
	surface     *echoSurface
	surfaceOpen bool
	shutdown    bool
	journal     *fakeJournal
	// openErr, when set, makes opening the surface fail.
	openErr error
}

func newTestEnv(t *testing.T, surface *echoSurface) *testEnv {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	env := &testEnv{dir: t.TempDir(), surface: surface, journal: &fakeJournal{}}
	env.cfgPath = filepath.Join(env.dir, "config.yaml")
	require.NoError(t, os.WriteFile(env.cfgPath, []byte(fastConfig), 0o644))

	origSurface, origJournal := openSurface, connectJournal
	openSurface = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (chat.Surface, func(context.Context) error, error) {
		if env.openErr != nil {
			return nil, nil, env.openErr
		}
		env.surfaceOpen = true
		return surface, func(context.Context) error {
			env.shutdown = true
			return nil
		}, nil
	}
	connectJournal = func(ctx context.Context, url string, logger *zap.Logger) (runJournal, func(), error) {
		return env.journal, func() { env.journal.closed = true }, nil
	}
	t.Cleanup(func() { openSurface, connectJournal = origSurface, origJournal })
	return env
}

func (e *testEnv) writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, "questions.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.ReplaceAll(string(b), "\r\n", "\n")
}
