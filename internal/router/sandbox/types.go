package sandbox

import (
	"errors"
	"time"
)

var (
	ErrClosed      = errors.New("sandbox is closed")
	ErrNotFunction = errors.New("not a function")
)

// Config defines sandbox configuration
type Config struct {
	Timeout       time.Duration // Per-call execution timeout, 0 disables it
	EnableConsole bool          // Route console.log/warn/error to the logger
}

// LoginData is the result of createLoginData.
type LoginData struct {
	EncryptData string `json:"EncryptData"`
	Name        string `json:"Name"`
	AuthData    string `json:"AuthData"`

	// Key is the derived key. It never leaves the host.
	Key string `json:"-"`
}

// Constants are the crypto parameters defined by the router's scripts.
type Constants struct {
	Iterations  int64
	KeySizeBits int64
	TagLength   int64
}

// Script is a named piece of source evaluated into the sandbox scope.
type Script struct {
	Name   string
	Source string
}

// Default configuration
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		EnableConsole: true,
	}
}
