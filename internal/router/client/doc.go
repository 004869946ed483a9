// Package client provides the HTTP client used to talk to the router's
// web interface.
//
// Built on go-resty/resty:
//   - Plain HTTP to the router's local address
//   - Pooled transport from hashicorp/go-retryablehttp, retries disabled
//   - Optional per-request timeout and rate limiting (x/time/rate)
//   - sonic as the JSON codec
//   - A cookies.Jar shared by every request of one client
//
// Any non-2xx response is returned as *StatusError.
//
// Example Usage:
//
//	c := client.New(client.Config{Host: "192.168.0.1"}, logger)
//	defer c.Close()
//	page, err := c.Get(ctx, "/", nil)
package client
