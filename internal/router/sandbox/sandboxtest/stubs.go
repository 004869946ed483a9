// Package sandboxtest provides deterministic stand-ins for the router's
// crypto scripts. The stubs keep the router's function signatures but
// replace PBKDF2 and CCM with readable string transformations, so tests
// can assert exactly which inputs reached which primitive.
package sandboxtest

import (
	"fmt"
	"strings"
)

// SJCL stands in for /scripts/sjcl.js.
const SJCL = `var sjcl = { version: "stub" };`

// SJCLCrypto stands in for /scripts/sjclCrypto.js.
const SJCLCrypto = `
var DEFAULT_SJCL_ITERATIONS = 1000;
var DEFAULT_SJCL_KEYSIZEBITS = 128;
var DEFAULT_SJCL_TAGLENGTH = 128;

function sjclPbkdf2(password, salt, iterations, size) {
	return "key(" + password + "|" + salt + "|" + iterations + "|" + size + ")";
}

function sjclCCMencrypt(key, data, iv, authData, tagLength) {
	return "enc[" + key + "|" + data + "|" + iv + "|" + authData + "|" + tagLength + "]";
}

function sjclCCMdecrypt(key, data, iv, authData, tagLength) {
	if (authData !== "nonce") {
		throw new Error("ccm: tag doesn't match");
	}
	return "nonce(" + key + "|" + data + "|" + iv + ")";
}
`

// SessionScript returns an inline script declaring the session constants.
func SessionScript(sessionID, iv, salt string) string {
	return fmt.Sprintf(`
	var currentSessionId = %q;
	var myIv = %q;
	var mySalt = %q;
`, sessionID, iv, salt)
}

// OverviewPage wraps the session script into an overview page.
func OverviewPage(sessionID, iv, salt string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head>\n")
	b.WriteString(`<script type="text/javascript" src="/scripts/sjcl.js"></script>` + "\n")
	b.WriteString(`<script type="text/javascript">var pageTitle = "Overview";</script>` + "\n")
	b.WriteString(`<script type="text/javascript">` + SessionScript(sessionID, iv, salt) + "</script>\n")
	b.WriteString("</head><body></body></html>\n")
	return b.String()
}

// Key is the key the stubs derive for password and salt.
func Key(password, salt string) string {
	return fmt.Sprintf("key(%s|%s|1000|128)", password, salt)
}

// Nonce is what the stub decryption yields.
func Nonce(key, encrypted, iv string) string {
	return fmt.Sprintf("nonce(%s|%s|%s)", key, encrypted, iv)
}
