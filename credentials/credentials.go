// Package credentials supplies the per-attempt request decoration (headers, cookies,
// query parameters) the remote listing expects from a browser session.
package credentials

import (
	"net/http"
	"net/url"
	"strings"
)

// Bundle is one complete set of request decoration.
type Bundle struct {
	Header  http.Header
	Cookies []*http.Cookie
	Query   url.Values
	// ClientID is echoed in the request body head.
	ClientID string
}

// Provider returns a fresh Bundle for every attempt.
type Provider interface {
	Credentials() (Bundle, error)
}

// ApplyTo merges the bundle into hdr, replacing keys it already holds, and
// returns rawURL with the bundle's query appended.
func (b Bundle) ApplyTo(hdr http.Header, rawURL string) (string, error) {
	for key, values := range b.Header {
		hdr.Del(key)
		for _, v := range values {
			hdr.Add(key, v)
		}
	}
	if len(b.Cookies) > 0 {
		parts := make([]string, 0, len(b.Cookies))
		for _, c := range b.Cookies {
			parts = append(parts, c.Name+"="+c.Value)
		}
		hdr.Set("Cookie", strings.Join(parts, "; "))
	}
	if len(b.Query) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for key, values := range b.Query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Static always returns the same bundle.
type Static struct {
	Bundle Bundle
}

func (s Static) Credentials() (Bundle, error) {
	b := Bundle{
		Header:   s.Bundle.Header.Clone(),
		Query:    url.Values{},
		ClientID: s.Bundle.ClientID,
	}
	if b.Header == nil {
		b.Header = http.Header{}
	}
	for k, v := range s.Bundle.Query {
		b.Query[k] = append([]string(nil), v...)
	}
	b.Cookies = append(b.Cookies, s.Bundle.Cookies...)
	return b, nil
}
