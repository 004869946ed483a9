package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/plwatchdog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/plwatchdog/internal/router/client"
	"github.com/GriffinCanCode/plwatchdog/internal/router/sandbox"
	"github.com/GriffinCanCode/plwatchdog/internal/router/sandbox/sandboxtest"
)

const (
	testPassword   = "s3cret"
	testSessionID  = "sid-42"
	testIV         = "iv-42"
	testSalt       = "salt-42"
	testCredential = "cred-token"
	testEncNonce   = "encrypted-nonce"
)

// fakeRouter imitates the router web interface on top of the stub crypto
// scripts. Every protocol check failure answers 403.
type fakeRouter struct {
	t *testing.T

	noCredential bool
	noSession    bool
	failPath     string
	failStatus   int

	mu        sync.Mutex
	calls     []string
	restarted atomic.Int32
}

func (f *fakeRouter) nonce() string {
	return sandboxtest.Nonce(sandboxtest.Key(testPassword, testSalt), testEncNonce, testIV)
}

func (f *fakeRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.RequestURI()
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	if f.failPath != "" && r.URL.Path == f.failPath {
		w.WriteHeader(f.failStatus)
		return
	}

	switch key {
	case "GET " + PathSJCL:
		io.WriteString(w, sandboxtest.SJCL)
	case "GET " + PathSJCLCrypto:
		io.WriteString(w, sandboxtest.SJCLCrypto)
	case "GET " + PathBase95x:
		if f.noCredential {
			io.WriteString(w, `function init() { return 1; }`)
			return
		}
		io.WriteString(w, `function login() { createCookie("credential", "`+testCredential+`"); }`)
	case "GET " + PathOverview:
		if f.noSession {
			io.WriteString(w, `<html><head><script>var pageTitle = "x";</script></head></html>`)
			return
		}
		io.WriteString(w, sandboxtest.OverviewPage(testSessionID, testIV, testSalt))
	case "PUT " + PathSetPassword:
		f.setPassword(w, r)
	case "POST " + PathSetSession:
		if !f.authorized(w, r) {
			return
		}
		io.WriteString(w, "{}")
	case "GET " + PathStatusRestart:
		io.WriteString(w, "<html>restart</html>")
	case "PUT " + PathRestart:
		if !f.authorized(w, r) {
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(f.t, `{"RestartReset":"Restart"}`, string(body))
		assert.Equal(f.t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.True(f.t, strings.HasSuffix(r.Header.Get("Referer"), PathStatusRestart))
		f.restarted.Add(1)
		io.WriteString(w, `{"p_status":"OK"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeRouter) setPassword(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie("credential"); err != nil || ck.Value != testCredential {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	var login struct {
		EncryptData string
		Name        string
		AuthData    string
	}
	body, _ := io.ReadAll(r.Body)
	if err := sonic.Unmarshal(body, &login); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	wantEnc := "enc[" + sandboxtest.Key(testPassword, testSalt) +
		`|{"Password":"` + testPassword + `","Nonce":"` + testSessionID + `"}|` +
		testIV + "|loginPassword|128]"
	if login.Name != "admin" || login.AuthData != "loginPassword" || login.EncryptData != wantEnc {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "php-1", Path: "/"})
	io.WriteString(w, `{"p_status":"Match","encryptData":"`+testEncNonce+`"}`)
}

func (f *fakeRouter) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("csrfNonce") != f.nonce() {
		w.WriteHeader(http.StatusForbidden)
		return false
	}
	if ck, err := r.Cookie("PHPSESSID"); err != nil || ck.Value != "php-1" {
		w.WriteHeader(http.StatusForbidden)
		return false
	}
	return true
}

func (f *fakeRouter) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

func newTestRestarter(t *testing.T, f *fakeRouter, attempts int, metrics *monitoring.Metrics) *Restarter {
	t.Helper()
	f.t = t
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	return NewRestarter(Config{
		Host:     strings.TrimPrefix(srv.URL, "http://"),
		Password: testPassword,
		Attempts: attempts,
		Sandbox:  sandbox.DefaultConfig(),
	}, zap.NewNop(), metrics)
}

func TestAttemptSuccess(t *testing.T) {
	f := &fakeRouter{}
	r := newTestRestarter(t, f, 1, nil)

	res, err := r.Attempt(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.Status)
	assert.JSONEq(t, `{"p_status":"OK"}`, res.Body)
	assert.Equal(t, int32(1), f.restarted.Load())

	// Initial load plus the browser-like reload.
	assert.Equal(t, 2, f.count("GET "+PathOverview))
	assert.Equal(t, 1, f.count("GET "+PathStatusRestart))
}

func TestAttemptMissingCredentialCookie(t *testing.T) {
	f := &fakeRouter{noCredential: true}
	r := newTestRestarter(t, f, 1, nil)

	_, err := r.Attempt(context.Background())

	var extraction *ExtractionError
	require.ErrorAs(t, err, &extraction)
	assert.Equal(t, "credential cookie", extraction.What)
	assert.Equal(t, "extraction", Kind(err))
	assert.Zero(t, f.count("PUT "+PathSetPassword))
}

func TestAttemptMissingSessionScript(t *testing.T) {
	f := &fakeRouter{noSession: true}
	r := newTestRestarter(t, f, 1, nil)

	_, err := r.Attempt(context.Background())

	var extraction *ExtractionError
	require.ErrorAs(t, err, &extraction)
	assert.Equal(t, "session constants script", extraction.What)
	assert.Zero(t, f.count("PUT "+PathSetPassword))
}

func TestAttemptTransportFailure(t *testing.T) {
	tests := []struct {
		name string
		path string
		step string
	}{
		{name: "asset fetch", path: PathSJCLCrypto, step: "fetch sjclCrypto"},
		{name: "login", path: PathSetPassword, step: "set password"},
		{name: "session", path: PathSetSession, step: "set session"},
		{name: "restart", path: PathRestart, step: "restart"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRouter{failPath: tt.path, failStatus: http.StatusInternalServerError}
			r := newTestRestarter(t, f, 1, nil)

			_, err := r.Attempt(context.Background())

			var transport *TransportError
			require.ErrorAs(t, err, &transport)
			assert.Equal(t, tt.step, transport.Step)
			assert.Equal(t, http.StatusInternalServerError, transport.Status)

			var statusErr *client.StatusError
			assert.ErrorAs(t, err, &statusErr)
			assert.Zero(t, f.restarted.Load())
		})
	}
}

func TestAttemptUnreachableRouter(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	host := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	r := NewRestarter(Config{Host: host, Password: testPassword, Attempts: 1}, zap.NewNop(), nil)
	_, err := r.Attempt(context.Background())

	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	assert.Zero(t, transport.Status)
}

func TestRestartSucceeds(t *testing.T) {
	metrics := monitoring.NewMetrics()
	f := &fakeRouter{}
	r := newTestRestarter(t, f, 3, metrics)

	require.NoError(t, r.Restart(context.Background()))

	assert.Equal(t, int32(1), f.restarted.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RestartAttempts.WithLabelValues(monitoring.ResultSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RestartAttempts.WithLabelValues(monitoring.ResultFailure)))
}

func TestRestartGivesUpAfterAttempts(t *testing.T) {
	metrics := monitoring.NewMetrics()
	f := &fakeRouter{noCredential: true}
	r := newTestRestarter(t, f, 3, metrics)

	err := r.Restart(context.Background())

	require.ErrorIs(t, err, ErrGaveUp)
	var extraction *ExtractionError
	assert.ErrorAs(t, err, &extraction)

	assert.Equal(t, 3, f.count("GET "+PathBase95x))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RestartAttempts.WithLabelValues(monitoring.ResultFailure)))
}

func TestRestartRecoversOnLaterAttempt(t *testing.T) {
	r := NewRestarter(Config{Attempts: 3}, zap.NewNop(), nil)

	calls := 0
	r.attempt = func(ctx context.Context) (*Result, error) {
		calls++
		if calls < 3 {
			return nil, &TransportError{Step: "fetch sjcl", Err: errors.New("connection refused")}
		}
		return &Result{Status: http.StatusOK}, nil
	}

	require.NoError(t, r.Restart(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestRestartStopsOnCancelledContext(t *testing.T) {
	r := NewRestarter(Config{Attempts: 3}, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	r.attempt = func(ctx context.Context) (*Result, error) {
		calls++
		cancel()
		return nil, ctx.Err()
	}

	err := r.Restart(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrGaveUp)
	assert.Equal(t, 1, calls)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "extraction", Kind(&ExtractionError{What: "x", Err: errors.New("y")}))
	assert.Equal(t, "transport", Kind(&TransportError{Step: "x", Err: errors.New("y")}))
	assert.Equal(t, "script", Kind(&ScriptError{Op: "x", Err: errors.New("y")}))
	assert.Equal(t, "unknown", Kind(errors.New("plain")))
}
