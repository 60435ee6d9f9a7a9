package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseClientHeader(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		wantID      string
		wantVersion string
		wantErr     bool
	}{
		{
			name:        "full header",
			header:      `id="sidecart-widget", version="1.4.2"`,
			wantID:      "sidecart-widget",
			wantVersion: "1.4.2",
		},
		{
			name:   "version omitted",
			header: `id="cartctl"`,
			wantID: "cartctl",
		},
		{
			name:    "empty",
			header:  "",
			wantErr: true,
		},
		{
			name:    "missing id",
			header:  `version="1.0.0"`,
			wantErr: true,
		},
		{
			name:    "id not a string",
			header:  `id=42`,
			wantErr: true,
		},
		{
			name:    "not a dictionary",
			header:  `?!?!`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseClientHeader(tt.header)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseClientHeader(%q) = %+v, want error", tt.header, info)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClientHeader(%q) error: %v", tt.header, err)
			}
			if info.ID != tt.wantID || info.Version != tt.wantVersion {
				t.Errorf("got %+v, want id=%q version=%q", info, tt.wantID, tt.wantVersion)
			}
		})
	}
}

// gateRequest runs one request through ClientGate and reports the status and
// the identity the inner handler observed.
func gateRequest(t *testing.T, minVersion, header string) (int, *ClientInfo, []byte) {
	t.Helper()

	var seen *ClientInfo
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := ClientGate(minVersion, logger)(inner)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	if header != "" {
		req.Header.Set("Cart-Client", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code, seen, rec.Body.Bytes()
}

func TestClientGate(t *testing.T) {
	t.Run("no header passes", func(t *testing.T) {
		status, seen, _ := gateRequest(t, "1.4.0", "")
		if status != http.StatusOK {
			t.Errorf("status = %d", status)
		}
		if seen != nil {
			t.Errorf("context identity = %+v, want none", seen)
		}
	})

	t.Run("malformed header passes without identity", func(t *testing.T) {
		status, seen, _ := gateRequest(t, "1.4.0", `?!?!`)
		if status != http.StatusOK {
			t.Errorf("status = %d", status)
		}
		if seen != nil {
			t.Errorf("context identity = %+v", seen)
		}
	})

	t.Run("current version passes and attaches identity", func(t *testing.T) {
		status, seen, _ := gateRequest(t, "1.4.0", `id="sidecart-widget", version="1.4.2"`)
		if status != http.StatusOK {
			t.Errorf("status = %d", status)
		}
		if seen == nil || seen.ID != "sidecart-widget" || seen.Version != "1.4.2" {
			t.Errorf("context identity = %+v", seen)
		}
	})

	t.Run("stale version gets 426", func(t *testing.T) {
		status, _, body := gateRequest(t, "1.4.0", `id="sidecart-widget", version="1.3.9"`)
		if status != http.StatusUpgradeRequired {
			t.Fatalf("status = %d, want 426", status)
		}

		var resp struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("response body: %v", err)
		}
		if resp.Error.Code != "WIDGET_UPGRADE_REQUIRED" {
			t.Errorf("code = %q", resp.Error.Code)
		}
	})

	t.Run("unknown version passes", func(t *testing.T) {
		status, _, _ := gateRequest(t, "1.4.0", `id="sidecart-widget"`)
		if status != http.StatusOK {
			t.Errorf("status = %d", status)
		}
	})

	t.Run("empty min version disables the gate", func(t *testing.T) {
		status, seen, _ := gateRequest(t, "", `id="sidecart-widget", version="0.0.1"`)
		if status != http.StatusOK {
			t.Errorf("status = %d", status)
		}
		if seen == nil {
			t.Error("identity not attached when gate disabled")
		}
	})
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.4.2", "v1.4.2"},
		{"v1.4.2", "v1.4.2"},
		{"1.4", "v1.4.0"},
		{"", ""},
		{"banana", ""},
	}
	for _, tt := range tests {
		if got := canonical(tt.in); got != tt.want {
			t.Errorf("canonical(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
