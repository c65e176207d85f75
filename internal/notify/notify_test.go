package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gex-analytics/internal/capture"
)

type published struct {
	path, title, priority, tags, auth, body string
}

func newNtfy(t *testing.T, status int) (*httptest.Server, *[]published) {
	t.Helper()
	var got []published
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, published{
			path:     r.URL.Path,
			title:    r.Header.Get("Title"),
			priority: r.Header.Get("Priority"),
			tags:     r.Header.Get("Tags"),
			auth:     r.Header.Get("Authorization"),
			body:     string(body),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestSendCaptureSuccess(t *testing.T) {
	srv, got := newNtfy(t, http.StatusOK)
	c := NewClient(&Config{Enabled: true, Server: srv.URL + "/", Topic: "gexa", Priority: "low", Tags: "chart", Token: "tk"}, zap.NewNop())

	result := &capture.BatchResult{Total: 3, Success: 2, NotFound: 1, Contracts: 420}
	if err := c.SendCapture(context.Background(), result, "2025-01-10", 90*time.Second, nil); err != nil {
		t.Fatalf("SendCapture: %v", err)
	}

	if len(*got) != 1 {
		t.Fatalf("published %d messages", len(*got))
	}
	msg := (*got)[0]
	if msg.path != "/gexa" || msg.title != "Capture Complete: 2025-01-10" || msg.priority != "low" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.tags != "chart,white_check_mark" || msg.auth != "Bearer tk" {
		t.Errorf("unexpected headers: %+v", msg)
	}
	if !strings.Contains(msg.body, "Contracts: 420") || !strings.Contains(msg.body, "Duration: 1m30s") {
		t.Errorf("unexpected body: %s", msg.body)
	}
}

func TestSendCaptureFailure(t *testing.T) {
	srv, got := newNtfy(t, http.StatusOK)
	c := NewClient(&Config{Enabled: true, Server: srv.URL, Topic: "gexa", Priority: "default", Tags: "chart"}, zap.NewNop())

	result := &capture.BatchResult{Total: 5, Failed: 5, Errors: []string{"a", "b", "c", "d", "e"}}
	if err := c.SendCapture(context.Background(), result, "2025-01-10", time.Second, errors.New("provider down")); err != nil {
		t.Fatalf("SendCapture: %v", err)
	}

	msg := (*got)[0]
	if msg.title != "Capture Failed: 2025-01-10" || msg.priority != "high" {
		t.Errorf("unexpected message: %+v", msg)
	}
	for _, want := range []string{"Error: provider down", "- c\n", "... and 2 more errors"} {
		if !strings.Contains(msg.body, want) {
			t.Errorf("body missing %q: %s", want, msg.body)
		}
	}
	if strings.Contains(msg.body, "- d") {
		t.Errorf("body lists too many errors: %s", msg.body)
	}
}

func TestSendCaptureHTTPError(t *testing.T) {
	srv, _ := newNtfy(t, http.StatusForbidden)
	c := NewClient(&Config{Enabled: true, Server: srv.URL, Topic: "gexa", Priority: "default"}, zap.NewNop())

	if err := c.SendCapture(context.Background(), &capture.BatchResult{}, "2025-01-10", 0, nil); err == nil {
		t.Error("expected error for 403")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"valid", Config{Enabled: true, Topic: "t", Priority: "urgent"}, false},
		{"missing topic", Config{Enabled: true, Priority: "default"}, true},
		{"bad priority", Config{Enabled: true, Topic: "t", Priority: "loud"}, true},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestNewDisabledIsNoop(t *testing.T) {
	if _, ok := New(&Config{}, zap.NewNop()).(NoopNotifier); !ok {
		t.Error("expected NoopNotifier when disabled")
	}
}
