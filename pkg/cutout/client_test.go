package cutout

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var cutoutPNG = []byte("\x89PNG\r\n\x1a\nfake-cutout")

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, req RemoveRequest)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case DefaultEndpoint:
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			var req RemoveRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			handler(w, req)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRemoveJSONResponse(t *testing.T) {
	var got RemoveRequest
	server := newTestServer(t, func(w http.ResponseWriter, req RemoveRequest) {
		got = req
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RemoveResponse{Image: base64.StdEncoding.EncodeToString(cutoutPNG)})
	})

	client := NewClient(server.URL+"/", "u2net", time.Second)
	out, err := client.Remove(context.Background(), []byte("photo"))
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if string(out) != string(cutoutPNG) {
		t.Errorf("Expected cutout bytes, got %q", out)
	}

	if got.Model != "u2net" || got.Format != "png" {
		t.Errorf("Unexpected request %+v", got)
	}
	if decoded, _ := base64.StdEncoding.DecodeString(got.Image); string(decoded) != "photo" {
		t.Errorf("Expected base64 encoded photo, got %q", got.Image)
	}
}

func TestRemoveDataURLResponse(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req RemoveRequest) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RemoveResponse{Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString(cutoutPNG)})
	})

	out, err := NewClient(server.URL, "", 0).Remove(context.Background(), []byte("photo"))
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if string(out) != string(cutoutPNG) {
		t.Errorf("Expected cutout bytes, got %q", out)
	}
}

func TestRemoveImageResponse(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req RemoveRequest) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(cutoutPNG)
	})

	out, err := NewClient(server.URL, "", 0).Remove(context.Background(), []byte("photo"))
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if string(out) != string(cutoutPNG) {
		t.Errorf("Expected cutout bytes, got %q", out)
	}
}

func TestRemoveErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter, req RemoveRequest)
	}{
		{"server error field", func(w http.ResponseWriter, req RemoveRequest) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(RemoveResponse{Error: "model not loaded"})
		}},
		{"missing image", func(w http.ResponseWriter, req RemoveRequest) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{}`))
		}},
		{"bad base64", func(w http.ResponseWriter, req RemoveRequest) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"image": "!!!"}`))
		}},
		{"status", func(w http.ResponseWriter, req RemoveRequest) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}},
		{"not json", func(w http.ResponseWriter, req RemoveRequest) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("hello"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.handler)
			if _, err := NewClient(server.URL, "", 0).Remove(context.Background(), []byte("photo")); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}

	if _, err := NewClient("http://127.0.0.1:1", "", 0).Remove(context.Background(), nil); err == nil {
		t.Error("Expected error for empty image")
	}
}

func TestRemoveOversizedResponse(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req RemoveRequest) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(cutoutPNG)
	})

	client := NewClient(server.URL, "", 0)
	client.maxBytes = 4
	_, err := client.Remove(context.Background(), []byte("photo"))
	if err == nil || !strings.Contains(err.Error(), "larger than 4 bytes") {
		t.Errorf("Expected size limit error, got %v", err)
	}

	client.maxBytes = int64(len(cutoutPNG))
	if _, err := client.Remove(context.Background(), []byte("photo")); err != nil {
		t.Errorf("Expected response at the limit to pass, got %v", err)
	}
}

func TestRemoveCancelled(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req RemoveRequest) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(cutoutPNG)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewClient(server.URL, "", 0).Remove(ctx, []byte("photo")); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req RemoveRequest) {})

	if err := NewClient(server.URL, "", 0).HealthCheck(context.Background()); err != nil {
		t.Errorf("Expected healthy server, got %v", err)
	}

	server.Close()
	if err := NewClient(server.URL, "", time.Second).HealthCheck(context.Background()); err == nil {
		t.Error("Expected error for closed server")
	}
}
