package handler

import (
	"bytes"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/confreg/internal/auth"
	"github.com/olegiv/confreg/internal/clock"
	"github.com/olegiv/confreg/internal/guest"
	"github.com/olegiv/confreg/internal/middleware"
	"github.com/olegiv/confreg/internal/render"
	"github.com/olegiv/confreg/internal/session"
	"github.com/olegiv/confreg/internal/settings"
	"github.com/olegiv/confreg/internal/table"
	"github.com/olegiv/confreg/internal/testutil"
	"github.com/olegiv/confreg/internal/uploads"
	"github.com/olegiv/confreg/web"
)

const testAdminPassword = "correct-horse-battery-staple"

// testApp is a running server over a temporary data directory.
type testApp struct {
	t        *testing.T
	dir      string
	clock    *clock.FakeClock
	store    *table.Store
	guests   *guest.Repository
	settings *settings.Store
	sessions *session.Registry
	uploads  *uploads.Area
	server   *httptest.Server
}

type testAppConfig struct {
	sessionTTL  time.Duration
	lockTimeout time.Duration
	maxUpload   int64
	maxAttempts int
}

func newTestApp(t *testing.T, opts ...func(*testAppConfig)) *testApp {
	t.Helper()
	cfg := testAppConfig{
		sessionTTL:  10 * time.Minute,
		lockTimeout: 200 * time.Millisecond,
		maxUpload:   uploads.DefaultMaxSize,
		maxAttempts: 5,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	dir := t.TempDir()
	logger := testutil.TestLoggerSilent()
	clk := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	store, err := table.New(filepath.Join(dir, "guests.csv"), filepath.Join(dir, "backups"), table.Options{
		LockTimeout: cfg.lockTimeout,
		StaleAfter:  time.Hour,
		Clock:       clk,
		Logger:      logger,
	})
	require.NoError(t, err)

	st, err := settings.Open(filepath.Join(dir, "settings.json"), logger)
	require.NoError(t, err)
	area, err := uploads.New(filepath.Join(dir, "uploads"), cfg.maxUpload)
	require.NoError(t, err)
	admin, err := auth.NewAdminSecret(testAdminPassword)
	require.NoError(t, err)

	flash := session.NewFlashManager(false)
	templates, err := fs.Sub(web.Templates, "templates")
	require.NoError(t, err)
	renderer, err := render.New(render.Config{TemplatesFS: templates, Flash: flash})
	require.NoError(t, err)
	static, err := fs.Sub(web.Static, "static")
	require.NoError(t, err)

	lp := middleware.NewLoginProtection(middleware.LoginProtectionConfig{
		IPRateLimit:       1000,
		IPBurst:           1000,
		MaxFailedAttempts: cfg.maxAttempts,
	})
	t.Cleanup(lp.Stop)

	app := &testApp{
		t:        t,
		dir:      dir,
		clock:    clk,
		store:    store,
		guests:   guest.NewRepository(store, guest.Options{CountryCode: "44", Clock: clk, Logger: logger}),
		settings: st,
		sessions: session.NewRegistry(cfg.sessionTTL, clk),
		uploads:  area,
	}

	h := NewRouter(Deps{
		Guests:          app.guests,
		Settings:        st,
		Sessions:        app.sessions,
		Cookie:          session.NewCookie(cfg.sessionTTL, false),
		Uploads:         area,
		Admin:           admin,
		Renderer:        renderer,
		Flash:           flash,
		LoginProtection: lp,
		KeepBackups:     10,
		Static:          static,
		Middleware: []func(http.Handler) http.Handler{
			middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(false)),
			middleware.CSRF(middleware.DefaultCSRFConfig([]byte("0123456789abcdef0123456789abcdef"), false, "")),
		},
		RequestTimeout: 5 * time.Second,
		Logger:         logger,
	})
	app.server = httptest.NewServer(h)
	t.Cleanup(app.server.Close)
	return app
}

func withSessionTTL(d time.Duration) func(*testAppConfig) {
	return func(c *testAppConfig) { c.sessionTTL = d }
}

func withMaxUpload(n int64) func(*testAppConfig) {
	return func(c *testAppConfig) { c.maxUpload = n }
}

func withMaxAttempts(n int) func(*testAppConfig) {
	return func(c *testAppConfig) { c.maxAttempts = n }
}

// testClient is a browser-like client that keeps cookies and does not
// follow redirects.
type testClient struct {
	t    *testing.T
	app  *testApp
	http *http.Client
}

func (a *testApp) client() *testClient {
	jar, err := cookiejar.New(nil)
	require.NoError(a.t, err)
	return &testClient{
		t:   a.t,
		app: a,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// response is a fully read reply.
type response struct {
	status   int
	header   http.Header
	body     string
	location string
}

func (c *testClient) do(req *http.Request) response {
	c.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return response{
		status:   resp.StatusCode,
		header:   resp.Header,
		body:     string(body),
		location: resp.Header.Get("Location"),
	}
}

func (c *testClient) get(path string) response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.app.server.URL+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *testClient) postForm(path string, form url.Values) response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.app.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *testClient) postFile(path, field, filename string, content []byte) response {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(c.t, err)
	_, err = part.Write(content)
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, c.app.server.URL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

// sessionToken returns the session cookie value the jar holds, or "".
func (c *testClient) sessionToken() string {
	u, _ := url.Parse(c.app.server.URL)
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == session.CookieName {
			return ck.Value
		}
	}
	return ""
}

// register signs up a guest and returns the logged in client.
func (a *testApp) register(name, email, institution, phone string) *testClient {
	a.t.Helper()
	c := a.client()
	resp := c.postForm(RouteRegister, url.Values{
		"name":        {name},
		"email":       {email},
		"institution": {institution},
		"phone":       {phone},
	})
	require.Equal(a.t, http.StatusSeeOther, resp.status, resp.body)
	require.Equal(a.t, RouteGuest, resp.location)
	return c
}

// adminClient returns a client with an admin session.
func (a *testApp) adminClient() *testClient {
	a.t.Helper()
	c := a.client()
	resp := c.postForm(RouteAdminLogin, url.Values{"password": {testAdminPassword}})
	require.Equal(a.t, http.StatusSeeOther, resp.status, resp.body)
	require.Equal(a.t, RouteAdmin, resp.location)
	return c
}

// rows returns the table rows, failing the test on error.
func (a *testApp) rows() []table.Row {
	a.t.Helper()
	rows, err := a.store.ReadAll(a.t.Context())
	require.NoError(a.t, err)
	return rows
}

// backups returns the snapshot count.
func (a *testApp) backups() int {
	a.t.Helper()
	snaps, err := a.store.ListBackups()
	require.NoError(a.t, err)
	return len(snaps)
}

// assertStatus checks if the response status code matches the expected value.
func assertStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status = %d; want %d", got, want)
	}
}
