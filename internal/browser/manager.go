// Package browser hosts the chat page in a Chrome process driven over the
// DevTools protocol and exposes it as a chat.Surface.
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/askbatch/internal/config"
	"github.com/xkilldash9x/askbatch/internal/retry"
)

const launchTimeout = 30 * time.Second

// Manager owns the browser process. It reuses a persisted profile so an
// identity signed in on a previous run stays signed in.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	// allocatorCtx manages the browser process.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	// tabCtx is the first tab. Canceling it closes the browser.
	tabCtx    context.Context
	tabCancel context.CancelFunc
}

// NewManager launches the browser and verifies it responds.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}
	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

func (m *Manager) launchBrowser(ctx context.Context) error {
	opts, err := m.buildAllocatorOptions()
	if err != nil {
		return err
	}

	m.logger.Info("Initializing browser allocator...",
		zap.Bool("headless", m.cfg.Headless),
		zap.String("profile", m.cfg.ProfileDirectory))

	// The browser must outlive the launch context; only Shutdown ends it.
	m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(Detach(ctx), opts...)
	m.tabCtx, m.tabCancel = chromedp.NewContext(m.allocatorCtx,
		chromedp.WithLogf(m.logger.Sugar().Debugf),
		chromedp.WithErrorf(m.logger.Sugar().Debugf),
	)

	testCtx, cancel := CombineContext(m.tabCtx, ctx)
	defer cancel()
	testCtx, cancelTimeout := context.WithTimeout(testCtx, launchTimeout)
	defer cancelTimeout()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.tabCancel()
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

func (m *Manager) buildAllocatorOptions() ([]chromedp.ExecAllocatorOption, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags, err := launchFlags(m.cfg)
	if err != nil {
		return nil, err
	}
	for name, value := range flags {
		opts = append(opts, chromedp.Flag(name, value))
	}

	if m.cfg.UserDataDir != "" {
		dir, err := homedir.Expand(m.cfg.UserDataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand user data dir: %w", err)
		}
		opts = append(opts, chromedp.UserDataDir(dir))
	}
	if m.cfg.ExecPath != "" {
		path, err := homedir.Expand(m.cfg.ExecPath)
		if err != nil {
			return nil, fmt.Errorf("failed to expand chrome path: %w", err)
		}
		opts = append(opts, chromedp.ExecPath(path))
	}
	return opts, nil
}

// launchFlags returns the command line switches for the browser, keyed by
// name without the leading dashes. Later entries override the defaults.
func launchFlags(cfg config.BrowserConfig) (map[string]interface{}, error) {
	flags := map[string]interface{}{
		"headless":        cfg.Headless,
		"disable-gpu":     cfg.Headless,
		"start-maximized": !cfg.Headless,
		// Sites gate sign-in on navigator.webdriver.
		"disable-blink-features": "AutomationControlled",
		"enable-automation":      false,
	}
	if cfg.ProfileDirectory != "" {
		flags["profile-directory"] = cfg.ProfileDirectory
	}

	if runtime.GOOS == "linux" && cfg.Headless {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
	}

	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			return nil, fmt.Errorf("invalid browser argument %q", arg)
		}
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}
	return flags, nil
}

// Open navigates the browser tab to the chat surface and waits the
// configured startup period for a manual sign-in or a slow first load.
func (m *Manager) Open(ctx context.Context, surface config.SurfaceConfig) (*Page, error) {
	m.logger.Info("Opening chat surface.", zap.String("url", surface.URL))

	navCtx, cancel := CombineContext(m.tabCtx, ctx)
	defer cancel()
	if m.cfg.NavigationTimeout > 0 {
		var cancelTimeout context.CancelFunc
		navCtx, cancelTimeout = context.WithTimeout(navCtx, m.cfg.NavigationTimeout)
		defer cancelTimeout()
	}
	if err := chromedp.Run(navCtx, chromedp.Navigate(surface.URL)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to navigate to %s: %w", surface.URL, err)
	}

	if m.cfg.StartupWait > 0 {
		m.logger.Info("Page opened. Sign in now if the surface asks for it.", zap.Duration("wait", m.cfg.StartupWait))
		if err := retry.Sleep(ctx, m.cfg.StartupWait); err != nil {
			return nil, err
		}
	}

	return newPage(m.tabCtx, surface, m.cfg.ActionTimeout, m.logger), nil
}

// Shutdown closes the browser, waiting for a graceful exit until ctx ends.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutdown initiated.")

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Cancel(m.tabCtx)
	}()

	var err error
	select {
	case err = <-done:
		if err != nil {
			m.logger.Warn("Browser did not close cleanly.", zap.Error(err))
		}
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
		err = ctx.Err()
	}

	m.tabCancel()
	m.allocatorCancel()
	<-m.allocatorCtx.Done()
	m.logger.Info("Browser process terminated.")
	return err
}
