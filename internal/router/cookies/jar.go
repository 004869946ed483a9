// Package cookies provides the cookie jar shared by all requests of one
// router restart attempt.
package cookies

import (
	"net/http"
	"net/url"
	"sort"
	"sync"
)

// Jar is a single-host cookie jar keyed by cookie name. It ignores path,
// expiry and domain matching: every stored cookie is sent with every
// request. It implements http.CookieJar.
type Jar struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
}

// New creates an empty jar.
func New() *Jar {
	return &Jar{cookies: make(map[string]*http.Cookie)}
}

// Put stores c, replacing any cookie with the same name.
func (j *Jar) Put(c *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.put(c)
}

func (j *Jar) put(c *http.Cookie) {
	stored := *c
	j.cookies[c.Name] = &stored
}

// ForRequest returns every stored cookie, ordered by name.
func (j *Jar) ForRequest(_ *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]*http.Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		// Only name and value go on the wire.
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Get returns the stored cookie named name.
func (j *Jar) Get(name string) (*http.Cookie, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	c, ok := j.cookies[name]
	if !ok {
		return nil, false
	}
	copied := *c
	return &copied, true
}

// Len returns the number of stored cookies.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.cookies)
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		if c.Domain == "" && u != nil {
			scoped := *c
			scoped.Domain = u.Hostname()
			c = &scoped
		}
		j.put(c)
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.ForRequest(u)
}
