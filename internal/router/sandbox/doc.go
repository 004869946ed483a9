/*
Package sandbox runs the router's browser-side crypto in an embedded
JavaScript engine.

# Overview

The router's web UI derives its login key (PBKDF2) and encrypts the
password (AES-CCM) in JavaScript shipped to the browser. Rather than
reimplementing those primitives, the sandbox evaluates the vendor scripts
with the goja engine and calls two small adapters:

  - createLoginData(name, password): derives the key and encrypts a JSON
    payload holding the password and current session nonce
  - decryptNonce(key, encryptedNonce): decrypts the CSRF nonce returned by
    the set-password call

# Lifecycle

A Runtime is created per restart attempt and never reused:

 1. With acquires a fresh VM and starts its lane goroutine
 2. LoadSession evaluates sjcl.js, sjclCrypto.js and the scraped session
    script, checks the expected symbols, then installs the adapters
 3. CreateLoginData / DecryptNonce run against that same scope
 4. Close (deferred by With) stops the lane on every exit path

# Concurrency

goja runtimes are not goroutine safe. Every evaluation and call is queued
onto the runtime's single lane goroutine, so callers on any goroutine are
serialized. Calls are interrupted on context cancellation or after
Config.Timeout.

# Usage Example

	err := sandbox.With(ctx, sandbox.DefaultConfig(), logger, func(rt *sandbox.Runtime) error {
		if err := rt.LoadSession(ctx, sjcl, sjclCrypto, session); err != nil {
			return err
		}
		login, err := rt.CreateLoginData(ctx, "admin", password)
		...
	})
*/
package sandbox
