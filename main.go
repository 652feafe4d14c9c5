package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/askbatch/cmd"
	"github.com/xkilldash9x/askbatch/internal/chat"
	"github.com/xkilldash9x/askbatch/internal/observability"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitNoInput   = 2
	exitPanicCode = 3
)

// osExit allows tests to intercept the process exit.
var osExit = os.Exit

func main() {
	defer handlePanic()

	// Ctrl+C stops the run; outcomes gathered so far are still written.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := exitCode(cmd.Execute(ctx))
	observability.Sync()
	stop()
	osExit(code)
}

// exitCode maps the command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return exitOK
	case errors.Is(err, chat.ErrNoInputControl):
		return exitNoInput
	default:
		return exitFailure
	}
}

// handlePanic flushes the logs and reports a crash with its stack.
func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()
		fmt.Fprintf(os.Stderr, "panic: %v\n\n%s\n", r, debug.Stack())
		osExit(exitPanicCode)
	}
}
