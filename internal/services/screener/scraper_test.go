package screener

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/tickerfeed/internal/models"
)

const ratiosPage = `<html><body>
<ul id="top-ratios">
  <li class="flex flex-space-between" data-source="default">
    <span class="name">Market Cap</span>
    <span class="nowrap value">₹ <span class="number">3,52,410</span> Cr.</span>
  </li>
  <li class="flex flex-space-between" data-source="default">
    <span class="name">High / Low</span>
    <span class="nowrap value">₹ <span class="number">1,339</span> / <span class="number">995</span></span>
  </li>
</ul></body></html>`

const emptyRatiosPage = `<html><body><ul id="top-ratios"></ul></body></html>`

const quarterlyPage = `<html><body><section id="quarters">
<table class="data-table">
  <thead><tr><th></th><th>Jun 2025</th><th>Sep 2025</th></tr></thead>
  <tbody>
    <tr><td class="text">Sales&nbsp;+</td><td>31,159</td><td>32,348</td></tr>
    <tr><td class="text">Net Profit&nbsp;+</td><td>5,806</td></tr>
    <tr class="attachments"><td>Raw PDF</td><td>pdf</td><td>pdf</td></tr>
  </tbody>
</table></section></body></html>`

func loggedInSession(page string) func() *fakeSession {
	return func() *fakeSession {
		return &fakeSession{
			pages:        map[string]string{testProfileURL: page},
			postLoginURL: "https://screener.test/dash/",
			loginPage:    `<html><body>login</body></html>`,
		}
	}
}

func TestFetchRatios_Success(t *testing.T) {
	var session *fakeSession
	launcher := &fakeLauncher{newSession: func() *fakeSession {
		session = loggedInSession(ratiosPage)()
		return session
	}}
	scraper := newTestScraper(testScreenerConfig(t), launcher)

	var transitions []State
	scraper.SetObserver(func(ticker string, from, to State) {
		transitions = append(transitions, to)
	})

	ratios, err := scraper.FetchRatios(context.Background(), "axisbank", testProfileURL)
	require.NoError(t, err)
	require.Len(t, ratios, 2)
	assert.Equal(t, "3,52,410", ratios["Market Cap"].NumberValue)
	assert.Equal(t, "₹ Cr.", ratios["Market Cap"].Unit)
	assert.Equal(t, "default", ratios["Market Cap"].SourceType)

	assert.True(t, session.isClosed())
	assert.Equal(t, StateClosed, scraper.State())
	assert.Equal(t, []State{
		StateIdle, StateSessionStarting, StateAuthenticating, StateAuthenticated,
		StateNavigating, StateExtracting, StateClosed,
	}, transitions)

	assert.Equal(t, []string{
		"navigate " + testLoginURL,
		`set input[name="username"]`,
		`set input[name="password"]`,
		`click button[type="submit"]`,
		"navigate " + testProfileURL,
		"wait #top-ratios",
	}, session.calls)
}

func TestFetchRatios_AuthenticationFailureTearsDownSession(t *testing.T) {
	var session *fakeSession
	launcher := &fakeLauncher{newSession: func() *fakeSession {
		session = &fakeSession{
			postLoginURL: testLoginURL + "?next=/dash/",
			loginPage:    `<html><body><form><div class="error">Please enter a correct email and password.</div></form></body></html>`,
		}
		return session
	}}
	scraper := newTestScraper(testScreenerConfig(t), launcher)

	ratios, err := scraper.FetchRatios(context.Background(), "AXISBANK", testProfileURL)
	assert.Nil(t, ratios)
	assert.ErrorIs(t, err, models.ErrAuthentication)
	assert.Contains(t, err.Error(), "Please enter a correct email and password.")

	assert.True(t, session.isClosed(), "session must be torn down on auth failure")
	assert.Equal(t, int32(0), launcher.active.Load())
	assert.Equal(t, StateFailed, scraper.State())
	for _, call := range session.calls {
		assert.NotEqual(t, "navigate "+testProfileURL, call, "no navigation after failed login")
	}
}

func TestFetchRatios_EmptyAnchorSavesArtifact(t *testing.T) {
	config := testScreenerConfig(t)
	var session *fakeSession
	launcher := &fakeLauncher{newSession: func() *fakeSession {
		session = loggedInSession(emptyRatiosPage)()
		return session
	}}
	scraper := newTestScraper(config, launcher)

	ratios, err := scraper.FetchRatios(context.Background(), "AXISBANK", testProfileURL)
	assert.Nil(t, ratios)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Contains(t, err.Error(), "no ratios found")

	artifact := filepath.Join(config.DebugDir, "debug_scraper_AXISBANK_ratios.html")
	data, readErr := os.ReadFile(artifact)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), `id="top-ratios"`)
	assert.True(t, session.isClosed())
}

func TestFetchQuarterly_AnchorTimeout(t *testing.T) {
	var session *fakeSession
	launcher := &fakeLauncher{newSession: func() *fakeSession {
		session = loggedInSession(quarterlyPage)()
		session.missing = map[string]bool{"#quarters": true}
		return session
	}}
	scraper := newTestScraper(testScreenerConfig(t), launcher)

	dataset, err := scraper.FetchQuarterly(context.Background(), "AXISBANK", testProfileURL)
	assert.Nil(t, dataset)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.True(t, session.isClosed())
}

func TestFetchQuarterly_Success(t *testing.T) {
	launcher := &fakeLauncher{newSession: loggedInSession(quarterlyPage)}
	scraper := newTestScraper(testScreenerConfig(t), launcher)

	dataset, err := scraper.FetchQuarterly(context.Background(), "AXISBANK", testProfileURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jun 2025", "Sep 2025"}, dataset.Headers)
	assert.Equal(t, []string{"31,159", "32,348"}, dataset.Metrics["Sales"])
	assert.Equal(t, []string{"5,806", ""}, dataset.Metrics["Net Profit"])
	assert.NoError(t, dataset.Validate())
}

func TestFetch_ConfigurationCheckedBeforeLaunch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Scraper)
	}{
		{"missing username", func(s *Scraper) { s.config.Username = "" }},
		{"missing password", func(s *Scraper) { s.config.Password = "" }},
		{"browser path does not exist", func(s *Scraper) { s.config.BrowserPath = "/nonexistent/chrome" }},
		{"browser path is a directory", func(s *Scraper) { s.config.BrowserPath = os.TempDir() }},
		{"no browser on PATH", func(s *Scraper) {
			s.config.BrowserPath = ""
			s.lookPath = func(string) (string, error) { return "", os.ErrNotExist }
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher := &fakeLauncher{newSession: loggedInSession(ratiosPage)}
			scraper := newTestScraper(testScreenerConfig(t), launcher)
			tt.mutate(scraper)

			_, err := scraper.FetchRatios(context.Background(), "AXISBANK", testProfileURL)
			assert.ErrorIs(t, err, models.ErrConfiguration)
			assert.Equal(t, int32(0), launcher.launches.Load(), "no browser activity before configuration passes")
			assert.Equal(t, StateFailed, scraper.State())
		})
	}
}

func TestFetch_BrowserFromPath(t *testing.T) {
	launcher := &fakeLauncher{newSession: loggedInSession(ratiosPage)}
	scraper := newTestScraper(testScreenerConfig(t), launcher)
	scraper.config.BrowserPath = ""
	scraper.lookPath = func(name string) (string, error) {
		if name == "chromium" {
			return "/usr/bin/chromium", nil
		}
		return "", os.ErrNotExist
	}

	_, err := scraper.FetchRatios(context.Background(), "AXISBANK", testProfileURL)
	assert.NoError(t, err)
}

func TestFetch_LaunchFailure(t *testing.T) {
	launcher := &fakeLauncher{err: errLaunch}
	scraper := newTestScraper(testScreenerConfig(t), launcher)

	_, err := scraper.FetchRatios(context.Background(), "AXISBANK", testProfileURL)
	assert.ErrorIs(t, err, models.ErrConfiguration)
	assert.ErrorIs(t, err, errLaunch)
}

func TestFetch_SessionsAreSerialized(t *testing.T) {
	launcher := &fakeLauncher{newSession: loggedInSession(ratiosPage), hold: 10 * time.Millisecond}
	scraper := newTestScraper(testScreenerConfig(t), launcher)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := scraper.FetchRatios(context.Background(), "AXISBANK", testProfileURL)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4), launcher.launches.Load())
	assert.Equal(t, int32(1), launcher.maxActive.Load(), "never more than one session at a time")
	assert.Equal(t, int32(0), launcher.active.Load())
}

func TestFetchRatios_PanicBecomesFetchError(t *testing.T) {
	session := &panickingSession{fakeSession: loggedInSession(ratiosPage)()}
	scraper := newTestScraper(testScreenerConfig(t), &staticLauncher{session: session})

	var transitions []State
	scraper.SetObserver(func(ticker string, from, to State) {
		transitions = append(transitions, to)
	})

	ratios, err := scraper.FetchRatios(context.Background(), "AXISBANK", testProfileURL)
	assert.Nil(t, ratios)
	require.Error(t, err)

	var fe *models.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, models.FailureNotFound, fe.Kind)
	assert.Equal(t, "fetch_ratios", fe.Op)
	assert.Equal(t, "AXISBANK", fe.Ticker)
	assert.Contains(t, err.Error(), "cdp: unexpected nil node")

	assert.True(t, session.isClosed())
	assert.Equal(t, StateFailed, scraper.State())
	assert.Equal(t, []State{
		StateIdle, StateSessionStarting, StateAuthenticating, StateAuthenticated,
		StateNavigating, StateExtracting, StateFailed,
	}, transitions)
	assert.NotContains(t, transitions, StateClosed)
}

func TestTransition_TerminalStateHoldsUntilNextCall(t *testing.T) {
	scraper := newTestScraper(testScreenerConfig(t), &fakeLauncher{newSession: loggedInSession(ratiosPage)})

	var transitions []State
	scraper.SetObserver(func(ticker string, from, to State) {
		transitions = append(transitions, to)
	})

	scraper.transition("AXISBANK", StateClosed)
	scraper.transition("AXISBANK", StateFailed)
	assert.Equal(t, StateClosed, scraper.State())

	scraper.transition("AXISBANK", StateIdle)
	assert.Equal(t, StateIdle, scraper.State())
	assert.Equal(t, []State{StateClosed, StateIdle}, transitions)

	assert.True(t, StateClosed.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateExtracting.Terminal())
}
