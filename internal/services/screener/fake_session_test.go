package screener

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
)

// fakeSession plays back a scripted site: the login page until submit, then postLoginURL.
type fakeSession struct {
	mu           sync.Mutex
	calls        []string
	current      string
	pages        map[string]string
	postLoginURL string
	loginPage    string
	missing      map[string]bool
	closed       bool
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.record("navigate " + url)
	f.mu.Lock()
	f.current = url
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) SetValue(ctx context.Context, selector, value string) error {
	f.record("set " + selector)
	return nil
}

func (f *fakeSession) Click(ctx context.Context, selector string) error {
	f.record("click " + selector)
	f.mu.Lock()
	f.current = f.postLoginURL
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Location(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeSession) WaitReady(ctx context.Context, selector string) error {
	f.record("wait " + selector)
	if f.missing[selector] {
		return context.DeadlineExceeded
	}
	return nil
}

func (f *fakeSession) OuterHTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if html, ok := f.pages[f.current]; ok {
		return html, nil
	}
	return f.loginPage, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeLauncher hands out sessions from newSession and tracks how many are open at once.
type fakeLauncher struct {
	newSession func() *fakeSession
	launches   atomic.Int32
	active     atomic.Int32
	maxActive  atomic.Int32
	err        error
	hold       time.Duration
}

func (l *fakeLauncher) Launch(ctx context.Context, browserPath string) (Session, error) {
	l.launches.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	n := l.active.Add(1)
	for {
		peak := l.maxActive.Load()
		if n <= peak || l.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}
	if l.hold > 0 {
		time.Sleep(l.hold)
	}
	return &trackedSession{fakeSession: l.newSession(), launcher: l}, nil
}

type trackedSession struct {
	*fakeSession
	launcher *fakeLauncher
	once     sync.Once
}

func (t *trackedSession) Close() error {
	t.once.Do(func() { t.launcher.active.Add(-1) })
	return t.fakeSession.Close()
}

var errLaunch = errors.New("exec: no such file")

const (
	testLoginURL   = "https://screener.test/login/"
	testProfileURL = "https://screener.test/company/AXISBANK/consolidated/"
)

func testScreenerConfig(t *testing.T) *common.ScreenerConfig {
	t.Helper()
	browser := filepath.Join(t.TempDir(), "chrome")
	if err := os.WriteFile(browser, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return &common.ScreenerConfig{
		Username:     "analyst@example.com",
		Password:     "secret",
		BrowserPath:  browser,
		LoginURL:     testLoginURL,
		LoginPath:    "/login/",
		Headless:     true,
		WaitTimeout:  common.Duration(40 * time.Millisecond),
		SettleDelay:  0,
		PollInterval: common.Duration(5 * time.Millisecond),
		DebugDir:     filepath.Join(t.TempDir(), "debug"),
	}
}

func newTestScraper(config *common.ScreenerConfig, launcher Launcher) *Scraper {
	return NewScraper(config, launcher, arbor.NewLogger())
}

// panickingSession logs in normally and then panics when the page is read.
type panickingSession struct {
	*fakeSession
}

func (p *panickingSession) OuterHTML(ctx context.Context) (string, error) {
	panic("cdp: unexpected nil node")
}

type staticLauncher struct {
	session Session
}

func (l *staticLauncher) Launch(ctx context.Context, browserPath string) (Session, error) {
	return l.session, nil
}
