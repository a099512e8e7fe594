package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPExecutorSuccess(t *testing.T) {
	t.Parallel()

	var gotReq executeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/execute" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"return_code":0,"output":"done","error":""}`))
	}))
	t.Cleanup(srv.Close)

	e := NewHTTPExecutor(srv.URL, time.Second, nil)
	outcome := e.Execute(context.Background(), "xdotool key Return")

	if gotReq.Command != "xdotool key Return" {
		t.Errorf("sent command = %q", gotReq.Command)
	}
	if !outcome.Succeeded {
		t.Fatalf("outcome failed: %s", outcome.Error)
	}
	if outcome.ExitStatus == nil || *outcome.ExitStatus != 0 {
		t.Errorf("exit status = %v, want 0", outcome.ExitStatus)
	}
	if outcome.Output != "done" {
		t.Errorf("output = %q, want done", outcome.Output)
	}
}

func TestHTTPExecutorNonZeroExitIsStillSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"return_code":1,"output":"","error":"no such window"}`))
	}))
	t.Cleanup(srv.Close)

	e := NewHTTPExecutor(srv.URL, time.Second, nil)
	outcome := e.Execute(context.Background(), "xdotool windowactivate 99")

	// A 200 from the boundary means the command ran; the exit code and
	// stderr are reported as-is.
	if !outcome.Succeeded {
		t.Fatalf("outcome failed: %s", outcome.Error)
	}
	if outcome.ExitStatus == nil || *outcome.ExitStatus != 1 {
		t.Errorf("exit status = %v, want 1", outcome.ExitStatus)
	}
	if outcome.Error != "no such window" {
		t.Errorf("error = %q", outcome.Error)
	}
}

func TestHTTPExecutorNon200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boundary exploded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	e := NewHTTPExecutor(srv.URL, time.Second, nil)
	outcome := e.Execute(context.Background(), "xdotool key Return")

	if outcome.Succeeded {
		t.Fatal("outcome succeeded for non-200 response")
	}
	if outcome.ExitStatus != nil {
		t.Errorf("exit status = %v, want nil", outcome.ExitStatus)
	}
	if !strings.HasPrefix(outcome.Error, "HTTP 500:") {
		t.Errorf("error = %q, want HTTP 500 prefix", outcome.Error)
	}
}

func TestHTTPExecutorTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	e := NewHTTPExecutor(srv.URL, time.Second, nil)
	outcome := e.Execute(context.Background(), "xdotool key Return")

	if outcome.Succeeded {
		t.Fatal("outcome succeeded against closed server")
	}
	if outcome.Error == "" {
		t.Error("expected transport error to be recorded")
	}
	if outcome.Command != "xdotool key Return" {
		t.Errorf("command = %q", outcome.Command)
	}
}

func TestHTTPExecutorTimeout(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	e := NewHTTPExecutor(srv.URL, 10*time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome := e.Execute(ctx, "sleep 60")
	if outcome.Succeeded {
		t.Fatal("outcome succeeded despite timeout")
	}
	if outcome.Error == "" {
		t.Error("expected timeout error to be recorded")
	}
}
