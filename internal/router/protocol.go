package router

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/plwatchdog/internal/router/client"
	"github.com/GriffinCanCode/plwatchdog/internal/router/sandbox"
	"github.com/GriffinCanCode/plwatchdog/internal/router/scrape"
)

// Router endpoints.
const (
	PathSJCL          = "/scripts/sjcl.js"
	PathSJCLCrypto    = "/scripts/sjclCrypto.js"
	PathOverview      = "/"
	PathBase95x       = "/base_95x.js"
	PathSetPassword   = "/php/ajaxSet_Password.php"
	PathSetSession    = "/php/ajaxSet_Session.php"
	PathStatusRestart = "/?status_restart&mid=StatusRestart"
	PathRestart       = "/php/ajaxSet_status_restart.php"
)

const (
	adminUser       = "admin"
	nonceHeader     = "csrfNonce"
	acceptHTML      = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.9"
	overviewReferer = "/?overview"
)

// Result is the router's answer to the restart command.
type Result struct {
	Status int
	Body   string
}

// assets are the four resources fetched at the start of an attempt.
type assets struct {
	sjcl       string
	sjclCrypto string
	overview   string
	base95x    string
}

// attempt is one run of the login and restart exchange. It owns a fresh
// client, cookie jar and sandbox; none of them outlive it.
type attempt struct {
	password string
	http     *client.Client
	sandbox  sandbox.Config
	logger   *zap.Logger
}

// Attempt performs a single login and restart exchange.
func (r *Restarter) Attempt(ctx context.Context) (*Result, error) {
	logger := r.logger.With(zap.String("attempt", uuid.NewString()))

	c := client.New(client.Config{
		Host:    r.config.Host,
		Timeout: r.config.Timeout,
		RPS:     r.config.RPS,
	}, logger)
	defer c.Close()

	a := &attempt{
		password: r.config.Password,
		http:     c,
		sandbox:  r.config.Sandbox,
		logger:   logger,
	}
	return a.run(ctx)
}

func (a *attempt) run(ctx context.Context) (*Result, error) {
	res, err := a.fetchAssets(ctx)
	if err != nil {
		return nil, err
	}

	credential, err := scrape.CredentialCookie(res.base95x)
	if err != nil {
		return nil, &ExtractionError{What: "credential cookie", Err: err}
	}
	a.http.Jar.Put(&http.Cookie{Name: "credential", Value: credential, Domain: a.http.Host()})

	// Declares currentSessionId, myIv and mySalt.
	session, err := scrape.SessionScript(res.overview)
	if err != nil {
		return nil, &ExtractionError{What: "session constants script", Err: err}
	}

	nonce, err := a.login(ctx, res, session)
	if err != nil {
		return nil, err
	}
	return a.restart(ctx, nonce)
}

// fetchAssets loads the four independent resources concurrently.
func (a *attempt) fetchAssets(ctx context.Context) (*assets, error) {
	var res assets
	g, gctx := errgroup.WithContext(ctx)

	for step, fetch := range map[string]struct {
		path string
		dst  *string
	}{
		"fetch sjcl":          {PathSJCL, &res.sjcl},
		"fetch sjclCrypto":    {PathSJCLCrypto, &res.sjclCrypto},
		"fetch overview page": {PathOverview, &res.overview},
		"fetch base_95x":      {PathBase95x, &res.base95x},
	} {
		step, fetch := step, fetch // per-iteration copies (go 1.21 loop semantics)
		g.Go(func() error {
			body, err := a.http.Get(gctx, fetch.path, nil)
			if err != nil {
				return transportError(step, err)
			}
			if body == "" {
				return transportError(step, errors.New("empty body"))
			}
			*fetch.dst = body
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &res, nil
}

// login evaluates the router scripts, sends the encrypted password and
// returns the decrypted CSRF nonce. The sandbox is released before the
// function returns.
func (a *attempt) login(ctx context.Context, res *assets, session string) (string, error) {
	var nonce string
	err := sandbox.With(ctx, a.sandbox, a.logger.Named("sandbox"), func(rt *sandbox.Runtime) error {
		err := rt.LoadSession(ctx,
			sandbox.Script{Name: "sjcl", Source: res.sjcl},
			sandbox.Script{Name: "sjclCrypto", Source: res.sjclCrypto},
			sandbox.Script{Name: "initVarsScript", Source: session},
		)
		var missing *sandbox.MissingSymbolsError
		if errors.As(err, &missing) {
			return &ExtractionError{What: "crypto parameters", Err: err}
		}
		if err != nil {
			return &ScriptError{Op: "load", Err: err}
		}

		if params, err := rt.Constants(ctx); err == nil {
			a.logger.Debug("Router crypto parameters",
				zap.Int64("iterations", params.Iterations),
				zap.Int64("key_size_bits", params.KeySizeBits),
				zap.Int64("tag_length", params.TagLength))
		}

		login, err := rt.CreateLoginData(ctx, adminUser, a.password)
		if err != nil {
			return &ScriptError{Op: "createLoginData", Err: err}
		}

		body, _, err := a.http.Do(ctx, http.MethodPut, PathSetPassword, func(r *resty.Request) {
			r.SetHeader("Content-Type", "application/json").SetBody(login)
		})
		if err != nil {
			return transportError("set password", err)
		}

		encrypted, err := scrape.EncryptedNonce(body)
		if err != nil {
			return &ExtractionError{What: "encrypted nonce", Err: err}
		}

		if nonce, err = rt.DecryptNonce(ctx, login.Key, encrypted); err != nil {
			return &ScriptError{Op: "decryptNonce", Err: err}
		}
		return nil
	})
	return nonce, err
}

// restart performs the CSRF-protected calls that trigger the reboot.
func (a *attempt) restart(ctx context.Context, nonce string) (*Result, error) {
	host := a.http.Host()

	// The server only accepts the session call after a browser-like
	// page load.
	_, err := a.http.Get(ctx, PathOverview, map[string]string{
		"Accept":     acceptHTML,
		"Referer":    a.http.URL(overviewReferer),
		"User-Agent": client.UserAgent,
	})
	if err != nil {
		return nil, transportError("reload overview page", err)
	}

	_, _, err = a.http.Do(ctx, http.MethodPost, PathSetSession, func(r *resty.Request) {
		r.SetHeaders(client.BrowserHeaders(host, "/")).SetHeaderVerbatim(nonceHeader, nonce)
	})
	if err != nil {
		return nil, transportError("set session", err)
	}

	if _, err := a.http.Get(ctx, PathStatusRestart, nil); err != nil {
		return nil, transportError("load restart page", err)
	}

	body, status, err := a.http.Do(ctx, http.MethodPut, PathRestart, func(r *resty.Request) {
		r.SetHeaders(client.BrowserHeaders(host, PathStatusRestart)).
			SetHeaderVerbatim(nonceHeader, nonce).
			SetHeader("Content-Type", "application/json").
			SetBody(`{"RestartReset":"Restart"}`)
	})
	if err != nil {
		return nil, transportError("restart", err)
	}
	return &Result{Status: status, Body: string(body)}, nil
}
