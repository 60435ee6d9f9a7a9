// Package transport provides the HTTP transport used for Storefront API calls.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// =============================================================================
// TLS FINGERPRINT TRANSPORT
// =============================================================================
//
// Go's standard TLS client has a distinctive fingerprint that triggers
// aggressive rate limiting on some CDNs, including the one fronting the
// Storefront GraphQL endpoints this service talks to. A cart widget issues a
// burst of reads after every mutation, so getting throttled shows up as a
// broken cart, not a slow one.
//
// This transport presents a Chrome-like TLS fingerprint via uTLS:
//
//   1. HelloChrome_Auto for Chrome's ClientHello
//   2. ALPN negotiates naturally (h2, http/1.1)
//   3. Go's http2.Transport handles HTTP/2 framing when negotiated
//
// Plain http:// endpoints (local development, httptest backends) bypass the
// fingerprinted path entirely and use a stock transport.
// =============================================================================

// New creates the http.RoundTripper for Storefront calls. HTTPS requests are
// sent with Chrome's TLS fingerprint; HTTP requests use a default transport.
func New(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}

	h2 := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
	}

	h1 := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
		ForceAttemptHTTP2: false,
	}

	return &storefrontTransport{
		h2:    h2,
		h1:    h1,
		plain: &http.Transport{DialContext: dialer.DialContext},
	}
}

// storefrontTransport routes by scheme and falls back from h2 to HTTP/1.1.
type storefrontTransport struct {
	h2    *http2.Transport
	h1    *http.Transport
	plain *http.Transport
}

// RoundTrip implements http.RoundTripper. For HTTPS it tries HTTP/2 first and
// falls back to HTTP/1.1 if the server doesn't support h2.
func (t *storefrontTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.plain.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	return t.h1.RoundTrip(req)
}

// dialChromeTLS establishes a TLS connection with Chrome's fingerprint.
func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	// Extract hostname for SNI
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
