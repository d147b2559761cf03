package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func withServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	prevAddr, prevTimeout, prevToken := serverAddr, timeout, jwtToken
	t.Cleanup(func() {
		serverAddr, timeout, jwtToken = prevAddr, prevTimeout, prevToken
	})
	serverAddr = strings.TrimPrefix(srv.URL, "http://")
	timeout = 5 * time.Second
}

func TestMakeRequest(t *testing.T) {
	t.Run("sets content type and body for JSON payloads", func(t *testing.T) {
		var gotCT, gotMethod string
		withServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotCT = r.Header.Get("Content-Type")
			gotMethod = r.Method
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		})

		resp, err := makeRequest("POST", "/v1/trigger", map[string]any{"event_type": "quality_alert"})
		if err != nil {
			t.Fatalf("makeRequest: %v", err)
		}
		resp.Body.Close()

		if gotMethod != "POST" {
			t.Errorf("method = %q, want POST", gotMethod)
		}
		if gotCT != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", gotCT)
		}
	})

	t.Run("attaches bearer token when configured", func(t *testing.T) {
		var gotAuth string
		withServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{}`))
		})
		jwtToken = "tok123"

		resp, err := makeRequest("GET", "/v1/stats", nil)
		if err != nil {
			t.Fatalf("makeRequest: %v", err)
		}
		resp.Body.Close()

		if gotAuth != "Bearer tok123" {
			t.Errorf("Authorization = %q, want Bearer tok123", gotAuth)
		}
	})
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     bool
		errContains string
	}{
		{
			name:   "success with payload",
			status: http.StatusOK,
			body:   `{"pending": 3}`,
		},
		{
			name:        "API error with message",
			status:      http.StatusConflict,
			body:        `{"error":"entry already delivered"}`,
			wantErr:     true,
			errContains: "entry already delivered",
		},
		{
			name:        "error without body",
			status:      http.StatusInternalServerError,
			body:        ``,
			wantErr:     true,
			errContains: "server returned",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			resp, err := makeRequest("GET", "/v1/stats", nil)
			if err != nil {
				t.Fatalf("makeRequest: %v", err)
			}

			var dst map[string]any
			err = decodeResponse(resp, &dst)
			if tt.wantErr {
				if err == nil {
					t.Fatal("decodeResponse() expected error but got none")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error = %v, want to contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeResponse: %v", err)
			}
			if dst["pending"] != float64(3) {
				t.Errorf("decoded body = %v", dst)
			}
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"trigger", "subscription", "entry", "sweep", "stats", "ping", "version"}
	registered := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("command %q not registered on root", name)
		}
	}
}
