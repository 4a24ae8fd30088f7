package screener

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/interfaces"
	"github.com/ternarybob/tickerfeed/internal/models"
)

const (
	opFetchRatios    = "fetch_ratios"
	opFetchQuarterly = "fetch_quarterly"

	usernameSelector = `input[name="username"]`
	passwordSelector = `input[name="password"]`
	submitSelector   = `button[type="submit"]`
	loginErrorQuery  = ".error"
)

// browserCandidates are tried on PATH when no browser_path is configured.
var browserCandidates = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"}

// Scraper drives an authenticated browser session against the ratios site.
// At most one session runs at a time across all calls on the same Scraper.
type Scraper struct {
	config   *common.ScreenerConfig
	launcher Launcher
	logger   arbor.ILogger

	// sessionMu is held for the whole of one fetch: launch, login, navigate, extract, teardown.
	sessionMu sync.Mutex

	stateMu  sync.RWMutex
	state    State
	observer Observer

	lookPath func(string) (string, error)
	sleep    func(context.Context, time.Duration) error
}

var _ interfaces.FinancialScraper = (*Scraper)(nil)

// NewScraper creates a scraper; launcher is normally a *ChromeLauncher.
func NewScraper(config *common.ScreenerConfig, launcher Launcher, logger arbor.ILogger) *Scraper {
	return &Scraper{
		config:   config,
		launcher: launcher,
		logger:   logger,
		state:    StateIdle,
		lookPath: exec.LookPath,
		sleep:    sleepContext,
	}
}

// SetObserver registers fn to receive state transitions. Pass nil to remove it.
func (s *Scraper) SetObserver(fn Observer) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.observer = fn
}

// State returns the state of the current or most recent session.
func (s *Scraper) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Scraper) transition(ticker string, to State) {
	s.stateMu.Lock()
	from := s.state
	// Closed and Failed end a call; only the next call's Idle may follow them.
	if from.Terminal() && to != StateIdle {
		s.stateMu.Unlock()
		s.logger.Warn().
			Str("ticker", ticker).
			Str("from", string(from)).
			Str("state", string(to)).
			Msg("Ignoring transition out of terminal state")
		return
	}
	s.state = to
	observer := s.observer
	s.stateMu.Unlock()

	s.logger.Debug().
		Str("ticker", ticker).
		Str("from", string(from)).
		Str("state", string(to)).
		Msg("Scraper state transition")

	if observer != nil {
		observer(ticker, from, to)
	}
}

// FetchRatios logs in and extracts the top-ratios list from profileURL.
func (s *Scraper) FetchRatios(ctx context.Context, ticker, profileURL string) (models.Ratios, error) {
	var ratios models.Ratios

	err := s.withSession(ctx, opFetchRatios, ticker, profileURL, ratiosAnchor, models.DatasetKindRatios,
		func(doc *goquery.Document) (bool, string) {
			ratios = ParseRatios(doc)
			return len(ratios) > 0, "no ratios found"
		})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("ticker", ticker).Int("count", len(ratios)).Msg("Ratios scraped")
	return ratios, nil
}

// FetchQuarterly logs in and extracts the quarterly results table from profileURL.
func (s *Scraper) FetchQuarterly(ctx context.Context, ticker, profileURL string) (*models.QuarterlyDataset, error) {
	var dataset *models.QuarterlyDataset

	err := s.withSession(ctx, opFetchQuarterly, ticker, profileURL, quarterlyAnchor, models.DatasetKindQuarterly,
		func(doc *goquery.Document) (bool, string) {
			dataset = ParseQuarterly(doc)
			return !dataset.Empty(), "no quarterly results found"
		})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("ticker", ticker).
		Int("periods", len(dataset.Headers)).
		Int("metrics", len(dataset.Metrics)).
		Msg("Quarterly results scraped")
	return dataset, nil
}

// extractFunc parses the rendered page; it returns false and a detail message when nothing was found.
type extractFunc func(doc *goquery.Document) (bool, string)

// withSession runs one full session under the scraper lock. The browser is closed on every path.
func (s *Scraper) withSession(ctx context.Context, op, ticker, profileURL, anchor string, kind models.DatasetKind, extract extractFunc) (err error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	ticker = models.NormalizeTicker(ticker)
	s.transition(ticker, StateIdle)

	// Teardown recovers first so a panic is reported as a failure, never as a clean close.
	var session Session
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("ticker", ticker).
				Str("op", op).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in scraper session")
			err = models.NewFetchError(models.FailureNotFound, op, ticker, "unexpected failure",
				fmt.Errorf("recovered from panic: %v", r))
		}
		if session != nil {
			if closeErr := session.Close(); closeErr != nil {
				s.logger.Debug().Str("ticker", ticker).Err(closeErr).Msg("Browser close reported an error")
			}
			s.logger.Debug().Str("ticker", ticker).Msg("Browser session closed")
		}
		if err != nil {
			s.transition(ticker, StateFailed)
			return
		}
		s.transition(ticker, StateClosed)
	}()

	browserPath, err := s.checkConfiguration(op, ticker)
	if err != nil {
		return err
	}
	if profileURL == "" {
		return models.NewFetchError(models.FailureConfiguration, op, ticker, "profile URL is required", nil)
	}

	s.transition(ticker, StateSessionStarting)
	launched, launchErr := s.launcher.Launch(ctx, browserPath)
	if launchErr != nil {
		s.logger.Error().Str("ticker", ticker).Str("browser", browserPath).Err(launchErr).Msg("Browser session failed to start")
		return models.NewFetchError(models.FailureConfiguration, op, ticker, "browser failed to start", launchErr)
	}
	session = launched

	if err := s.authenticate(ctx, session, op, ticker); err != nil {
		return err
	}

	s.transition(ticker, StateNavigating)
	if err := session.Navigate(ctx, profileURL); err != nil {
		fe := models.NewFetchError(models.FailureNetwork, op, ticker, "profile page failed to load", err)
		fe.URL = profileURL
		return fe
	}
	if err := session.WaitReady(ctx, anchor); err != nil {
		s.logger.Warn().Str("ticker", ticker).Str("anchor", anchor).Err(err).Msg("Content anchor did not appear")
		fe := models.NewFetchError(models.FailureNotFound, op, ticker, fmt.Sprintf("anchor %s not found", anchor), err)
		fe.URL = profileURL
		return fe
	}
	if err := s.sleep(ctx, s.config.SettleDelay.D()); err != nil {
		return models.NewFetchError(models.FailureNetwork, op, ticker, "cancelled while page settled", err)
	}

	s.transition(ticker, StateExtracting)
	html, err := session.OuterHTML(ctx)
	if err != nil {
		return models.NewFetchError(models.FailureNetwork, op, ticker, "failed to read page", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.NewFetchError(models.FailureNotFound, op, ticker, "page is not parseable", err)
	}

	if ok, detail := extract(doc); !ok {
		artifact := s.saveDebugPage(ticker, kind, html)
		s.logger.Warn().
			Str("ticker", ticker).
			Str("anchor", anchor).
			Str("artifact", artifact).
			Msg("Extraction returned nothing")
		fe := models.NewFetchError(models.FailureNotFound, op, ticker, detail, nil)
		fe.URL = profileURL
		return fe
	}

	return nil
}

// checkConfiguration runs before any browser or network activity and returns the browser binary path.
func (s *Scraper) checkConfiguration(op, ticker string) (string, error) {
	if s.config.Username == "" || s.config.Password == "" {
		return "", models.NewFetchError(models.FailureConfiguration, op, ticker, "screener credentials are not configured", nil)
	}

	if s.config.BrowserPath != "" {
		info, err := os.Stat(s.config.BrowserPath)
		if err != nil {
			return "", models.NewFetchError(models.FailureConfiguration, op, ticker,
				fmt.Sprintf("browser not found at %s", s.config.BrowserPath), err)
		}
		if info.IsDir() {
			return "", models.NewFetchError(models.FailureConfiguration, op, ticker,
				fmt.Sprintf("browser path %s is a directory", s.config.BrowserPath), nil)
		}
		return s.config.BrowserPath, nil
	}

	for _, name := range browserCandidates {
		if path, err := s.lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", models.NewFetchError(models.FailureConfiguration, op, ticker, "no Chrome or Chromium binary found on PATH", nil)
}

// authenticate submits the login form and polls the location until it leaves the login path.
// There is no retry.
func (s *Scraper) authenticate(ctx context.Context, session Session, op, ticker string) error {
	s.transition(ticker, StateAuthenticating)

	if err := session.Navigate(ctx, s.config.LoginURL); err != nil {
		fe := models.NewFetchError(models.FailureNetwork, op, ticker, "login page failed to load", err)
		fe.URL = s.config.LoginURL
		return fe
	}
	if err := session.SetValue(ctx, usernameSelector, s.config.Username); err != nil {
		return models.NewFetchError(models.FailureAuthentication, op, ticker, "username field not found", err)
	}
	if err := session.SetValue(ctx, passwordSelector, s.config.Password); err != nil {
		return models.NewFetchError(models.FailureAuthentication, op, ticker, "password field not found", err)
	}
	if err := session.Click(ctx, submitSelector); err != nil {
		return models.NewFetchError(models.FailureAuthentication, op, ticker, "submit button not found", err)
	}

	deadline := time.Now().Add(s.config.WaitTimeout.D())
	for {
		location, err := session.Location(ctx)
		if err == nil && !strings.Contains(location, s.config.LoginPath) {
			s.transition(ticker, StateAuthenticated)
			s.logger.Debug().Str("ticker", ticker).Str("url", location).Msg("Login succeeded")
			return nil
		}
		if !time.Now().Before(deadline) {
			break
		}
		if err := s.sleep(ctx, s.config.PollInterval.D()); err != nil {
			return models.NewFetchError(models.FailureNetwork, op, ticker, "cancelled during login", err)
		}
	}

	messages := s.loginErrors(ctx, session)
	s.logger.Warn().Str("ticker", ticker).Strs("errors", messages).Msg("Login failed")

	detail := "still on login page after submit"
	if len(messages) > 0 {
		detail = fmt.Sprintf("%s: %s", detail, strings.Join(messages, "; "))
	}
	return models.NewFetchError(models.FailureAuthentication, op, ticker, detail, nil)
}

func (s *Scraper) loginErrors(ctx context.Context, session Session) []string {
	html, err := session.OuterHTML(ctx)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var messages []string
	doc.Find(loginErrorQuery).Each(func(_ int, el *goquery.Selection) {
		if text := common.CollapseSpaces(el.Text()); text != "" {
			messages = append(messages, text)
		}
	})
	return messages
}

// saveDebugPage writes the raw page for markup-drift diagnosis. Returns the file path, or "" if not written.
func (s *Scraper) saveDebugPage(ticker string, kind models.DatasetKind, html string) string {
	if s.config.DebugDir == "" {
		return ""
	}
	if err := os.MkdirAll(s.config.DebugDir, 0755); err != nil {
		s.logger.Warn().Str("dir", s.config.DebugDir).Err(err).Msg("Failed to create debug directory")
		return ""
	}

	path := filepath.Join(s.config.DebugDir, fmt.Sprintf("debug_scraper_%s_%s.html", sanitizeFileToken(ticker), kind))
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		s.logger.Warn().Str("path", path).Err(err).Msg("Failed to write debug page")
		return ""
	}
	return path
}

// sanitizeFileToken keeps tickers like "M&M" or "BAJAJ-AUTO" usable in file names.
func sanitizeFileToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
