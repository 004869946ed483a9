// Package scrape holds the small parsers that pull session values out of
// router markup and scripts. Each parser fails with a sentinel error when
// the expected fragment is absent, so a firmware change surfaces here
// instead of as a confusing downstream failure.
package scrape

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
)

var (
	ErrCredentialNotFound    = errors.New(`no createCookie("credential", ...) call found`)
	ErrSessionScriptNotFound = errors.New("no script declaring currentSessionId found")
	ErrNonceNotFound         = errors.New("no encryptData field in set-password response")
)

var (
	credentialPattern         = regexp.MustCompile(`createCookie\s*\(\s*"credential"\s*,\s*"(.*?)"\s*\)`)
	sessionDeclarationPattern = regexp.MustCompile(`(var|let|const) +currentSessionId`)
)

// CredentialCookie extracts the value passed to createCookie("credential", "...").
func CredentialCookie(script string) (string, error) {
	m := credentialPattern.FindStringSubmatch(script)
	if m == nil {
		return "", ErrCredentialNotFound
	}
	return m[1], nil
}

// SessionScript returns the source of the first inline script in page that
// declares currentSessionId. The same script declares the IV and salt.
func SessionScript(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse overview page: %w", err)
	}

	var found string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if _, external := s.Attr("src"); external {
			return true
		}
		if src := s.Text(); sessionDeclarationPattern.MatchString(src) {
			found = src
			return false
		}
		return true
	})

	if found == "" {
		return "", ErrSessionScriptNotFound
	}
	return found, nil
}

type setPasswordResponse struct {
	EncryptData string `json:"encryptData"`
}

// EncryptedNonce extracts the encrypted CSRF nonce from the set-password response.
func EncryptedNonce(body []byte) (string, error) {
	var resp setPasswordResponse
	if err := sonic.Unmarshal([]byte(strings.TrimSpace(string(body))), &resp); err != nil {
		return "", fmt.Errorf("decode set-password response: %w", err)
	}
	if resp.EncryptData == "" {
		return "", ErrNonceNotFound
	}
	return resp.EncryptData, nil
}
