package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDeliverSignsBody(t *testing.T) {
	t.Parallel()

	type received struct {
		body []byte
		sig  string
		ua   string
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got <- received{body: b, sig: r.Header.Get(SignatureHeader), ua: r.UserAgent()}
	}))
	defer srv.Close()

	event := &Event{Type: EventCrawlCompleted, JobID: "job-1", Timestamp: 42, Data: map[string]int{"pages": 3}}
	if err := NewSender(time.Second).Deliver(context.Background(), srv.URL, "s3cret", event); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	r := <-got
	if !Verify("s3cret", r.body, r.sig) {
		t.Errorf("signature %q does not verify", r.sig)
	}
	if Verify("other", r.body, r.sig) {
		t.Error("signature verified with the wrong secret")
	}
	if r.ua != "Crawlkit-Webhook/1.0" {
		t.Errorf("user agent = %q", r.ua)
	}

	var decoded Event
	if err := json.Unmarshal(r.body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != EventCrawlCompleted || decoded.JobID != "job-1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestDeliverWithoutSecret(t *testing.T) {
	t.Parallel()

	sigs := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sigs <- r.Header.Get(SignatureHeader)
	}))
	defer srv.Close()

	if err := NewSender(time.Second).Deliver(context.Background(), srv.URL, "", &Event{Type: EventCrawlFailed}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if sig := <-sigs; sig != "" {
		t.Errorf("unsigned delivery carried signature %q", sig)
	}
}

func TestDeliverRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := NewSender(time.Second).Deliver(context.Background(), srv.URL, "", &Event{}); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestDeliverAsyncRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	s := NewSender(time.Second, 10*time.Millisecond, 10*time.Millisecond, 10*time.Millisecond)
	select {
	case err := <-s.DeliverAsync(srv.URL, "", &Event{Type: EventCrawlCompleted}):
		if err != nil {
			t.Fatalf("DeliverAsync: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("delivery did not finish")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestDeliverAsyncGivesUp(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewSender(time.Second, time.Millisecond)
	if err := <-s.DeliverAsync(srv.URL, "", &Event{}); err == nil {
		t.Error("expected final error")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}
