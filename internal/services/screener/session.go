package screener

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
)

// Session is one automated browser tab. Every call is bounded by the session's wait timeout
// and by ctx, whichever ends first.
type Session interface {
	Navigate(ctx context.Context, url string) error
	SetValue(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Location(ctx context.Context) (string, error)
	WaitReady(ctx context.Context, selector string) error
	OuterHTML(ctx context.Context) (string, error)
	Close() error
}

// Launcher starts a browser session using the binary at browserPath.
type Launcher interface {
	Launch(ctx context.Context, browserPath string) (Session, error)
}

// webdriverMask hides the automation flag from page scripts on every new document.
const webdriverMask = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });`

// ChromeLauncher launches headless Chrome/Chromium through chromedp.
type ChromeLauncher struct {
	config    *common.ScreenerConfig
	userAgent string
	logger    arbor.ILogger
}

// NewChromeLauncher creates a launcher for the [screener] browser settings
func NewChromeLauncher(config *common.ScreenerConfig, userAgent string, logger arbor.ILogger) *ChromeLauncher {
	return &ChromeLauncher{
		config:    config,
		userAgent: userAgent,
		logger:    logger,
	}
}

func (l *ChromeLauncher) allocatorOptions(browserPath string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(browserPath),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,

		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("guest", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.WSURLReadTimeout(l.config.WaitTimeout.D()),
	}

	if l.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.userAgent))
	}

	if l.config.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}

	return opts
}

// Launch starts the browser, opens a tab and installs the webdriver mask.
func (l *ChromeLauncher) Launch(ctx context.Context, browserPath string) (Session, error) {
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), l.allocatorOptions(browserPath)...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(func(s string, i ...interface{}) {
			l.logger.Debug().Msgf("chromedp: "+s, i...)
		}),
	)

	session := &chromeSession{
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		timeout:         l.config.WaitTimeout.D(),
	}

	// The first Run allocates the browser and must use the tab context itself,
	// otherwise the browser dies with the first timeout context.
	if err := chromedp.Run(browserCtx); err != nil {
		session.Close()
		return nil, fmt.Errorf("browser failed to start: %w", err)
	}

	err := session.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(webdriverMask).Do(ctx)
		return err
	}))
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to install webdriver mask: %w", err)
	}

	l.logger.Debug().Str("browser", browserPath).Bool("headless", l.config.Headless).Msg("Browser session started")

	return session, nil
}

type chromeSession struct {
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	timeout         time.Duration
}

// run executes actions on the tab, bounded by the wait timeout and the caller's ctx.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.browserCtx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *chromeSession) SetValue(ctx context.Context, selector, value string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var location string
	err := s.run(ctx, chromedp.Location(&location))
	return location, err
}

func (s *chromeSession) WaitReady(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (s *chromeSession) OuterHTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Close shuts the browser down. Safe to call more than once.
func (s *chromeSession) Close() error {
	var err error
	if s.browserCancel != nil {
		err = chromedp.Cancel(s.browserCtx)
		s.browserCancel()
		s.browserCancel = nil
	}
	if s.allocatorCancel != nil {
		s.allocatorCancel()
		s.allocatorCancel = nil
	}
	return err
}
