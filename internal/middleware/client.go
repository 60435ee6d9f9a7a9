package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dunglas/httpsfv"
	"golang.org/x/mod/semver"
)

// The widget layer identifies itself with a Cart-Client header so stale
// embeds can be detected server side. Format is an RFC 8941 Dictionary:
//
//	Cart-Client: id="sidecart-widget", version="1.4.2"
//
// The header is optional; non-widget callers (cartctl, curl) are not gated.
// A present header with a version older than the configured minimum is
// rejected with 426 so the page knows to reload the bundle.

// clientHeader is the widget identification header.
const clientHeader = "Cart-Client"

// ClientInfo identifies the calling widget build.
type ClientInfo struct {
	ID      string
	Version string
}

type clientContextKey struct{}

// ClientFromContext returns the widget identity attached by ClientGate, or nil.
func ClientFromContext(ctx context.Context) *ClientInfo {
	info, _ := ctx.Value(clientContextKey{}).(*ClientInfo)
	return info
}

// ParseClientHeader parses a Cart-Client header value.
// Returns an error if the header is malformed or missing the id key.
func ParseClientHeader(header string) (*ClientInfo, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, errors.New("empty Cart-Client header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return nil, fmt.Errorf("invalid Cart-Client header: %w", err)
	}

	id, err := dictString(dict, "id")
	if err != nil {
		return nil, err
	}

	// version is optional; absent means "unknown", which passes the gate.
	version, _ := dictString(dict, "version")

	return &ClientInfo{ID: id, Version: version}, nil
}

// dictString extracts a string item from an RFC 8941 dictionary.
func dictString(dict *httpsfv.Dictionary, key string) (string, error) {
	member, ok := dict.Get(key)
	if !ok {
		return "", fmt.Errorf("%s key not found in Cart-Client header", key)
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", fmt.Errorf("%s value must be an item", key)
	}
	s, ok := item.Value.(string)
	if !ok {
		return "", fmt.Errorf("%s value must be a string", key)
	}
	return s, nil
}

// ClientGate returns middleware that parses the optional Cart-Client header,
// attaches the identity to the request context, and rejects widget versions
// older than minVersion (semver, with or without the "v" prefix). An empty
// minVersion disables the version check.
func ClientGate(minVersion string, logger *slog.Logger) func(http.Handler) http.Handler {
	minCanonical := canonical(minVersion)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(clientHeader)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			info, err := ParseClientHeader(header)
			if err != nil {
				// Malformed identification is logged, not rejected: the
				// gate exists to catch stale widgets, not to authenticate.
				logger.Warn("unparseable Cart-Client header", slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			if minCanonical != "" && info.Version != "" {
				v := canonical(info.Version)
				if semver.IsValid(v) && semver.Compare(v, minCanonical) < 0 {
					writeUpgradeRequired(w, info.Version, minVersion)
					return
				}
			}

			ctx := context.WithValue(r.Context(), clientContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// canonical normalizes a version to semver's required "v" prefix form.
// Returns "" for invalid versions.
func canonical(version string) string {
	if version == "" {
		return ""
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) {
		return ""
	}
	return semver.Canonical(version)
}

func writeUpgradeRequired(w http.ResponseWriter, got, want string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUpgradeRequired)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "WIDGET_UPGRADE_REQUIRED",
			"message": fmt.Sprintf("widget version %s is no longer supported; minimum is %s", got, want),
		},
	})
}
