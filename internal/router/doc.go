/*
Package router restarts a Vodafone Station through its web interface.

The router has no restart API. Its web UI logs in with a browser-side
handshake: the password is encrypted with a key derived from a per-session
salt, the server answers with an encrypted CSRF nonce, and every state
changing call must carry that nonce. One attempt runs:

 1. Fetch sjcl.js, sjclCrypto.js, the overview page and base_95x.js
    concurrently
 2. Extract the credential cookie from base_95x.js
 3. Extract the session constants script from the overview page
 4. createLoginData in the sandbox, PUT it to ajaxSet_Password.php
 5. decryptNonce on the response's encryptData
 6. Reload the overview page with browser headers
 7. POST ajaxSet_Session.php with the csrfNonce header
 8. GET the status restart page
 9. PUT {"RestartReset":"Restart"} to ajaxSet_status_restart.php

Every attempt uses a fresh client, cookie jar and sandbox. Failures are
typed: *ExtractionError for missing fragments, *TransportError for failed
exchanges and *ScriptError for sandbox failures. Restarter.Restart retries
a failed attempt a fixed number of times.
*/
package router
