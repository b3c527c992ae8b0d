package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// fakeDiscord is a minimal webhook endpoint keeping messages in memory.
type fakeDiscord struct {
	mu       sync.Mutex
	next     int
	messages map[string]Message
	requests []string
}

func newFakeDiscord() *fakeDiscord {
	return &fakeDiscord{next: 1000, messages: make(map[string]Message)}
}

func (f *fakeDiscord) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.RequestURI())

	body, _ := io.ReadAll(r.Body)
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		http.Error(w, `{"message":"Cannot send an empty message"}`, http.StatusBadRequest)
		return
	}

	const prefix = "/api/webhooks/1/tok"
	switch {
	case r.Method == http.MethodPost && r.URL.Path == prefix:
		if r.URL.Query().Get("wait") != "true" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		f.next++
		id := fmt.Sprint(f.next)
		f.messages[id] = msg
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q}`, id)
	case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, prefix+"/messages/"):
		id := strings.TrimPrefix(r.URL.Path, prefix+"/messages/")
		if _, ok := f.messages[id]; !ok {
			http.Error(w, `{"message":"Unknown Message","code":10008}`, http.StatusNotFound)
			return
		}
		f.messages[id] = msg
		fmt.Fprintf(w, `{"id":%q}`, id)
	default:
		http.Error(w, "unexpected", http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	c, err := NewClient(srvURL+"/api/webhooks/1/tok", Options{
		Timeout:   2 * time.Second,
		RetryWait: time.Millisecond,
		Rate:      rate.Inf,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func sampleMessage(text string) Message {
	return Message{
		Username: "Status",
		Embeds: []Embed{{
			Title:  "Growtopia Status",
			Color:  5763719,
			Fields: []Field{{Name: "Online", Value: text}},
			Footer: &Footer{Text: "Last Update"},
		}},
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "discord.com/api/webhooks/1/tok", "ftp://x/y", "://bad"} {
		if _, err := NewClient(raw, Options{}); err == nil {
			t.Errorf("NewClient(%q) succeeded, want error", raw)
		}
	}
}

func TestClientCreateAndEdit(t *testing.T) {
	fake := newFakeDiscord()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	id, err := c.Create(ctx, sampleMessage("first"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := c.Edit(ctx, id, sampleMessage("second")); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	got := fake.messages[id]
	if got.Embeds[0].Fields[0].Value != "second" || got.Username != "Status" {
		t.Errorf("stored message = %+v", got)
	}
	want := []string{
		"POST /api/webhooks/1/tok?wait=true",
		"PATCH /api/webhooks/1/tok/messages/" + id,
	}
	if strings.Join(fake.requests, "\n") != strings.Join(want, "\n") {
		t.Errorf("requests = %q, want %q", fake.requests, want)
	}
}

func TestClientEditUnknownMessage(t *testing.T) {
	srv := httptest.NewServer(newFakeDiscord())
	defer srv.Close()

	err := newTestClient(t, srv.URL).Edit(context.Background(), "42", sampleMessage("x"))
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !strings.Contains(apiErr.Body, "Unknown Message") {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestClientCreateWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL).Create(context.Background(), sampleMessage("x")); err == nil {
		t.Fatal("expected error when response has no id")
	}
}

func TestClientEditRetriesServerErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"7"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/api/webhooks/1/tok", Options{RetryMax: 2, RetryWait: time.Millisecond, Rate: rate.Inf})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Edit(context.Background(), "7", sampleMessage("x")); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestClientCreateRetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		first     int
		wantErr   bool
		wantCalls int
	}{
		{"server error is not retried", http.StatusBadGateway, true, 1},
		{"rate limit is retried", http.StatusTooManyRequests, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				defer mu.Unlock()
				calls++
				if calls == 1 {
					http.Error(w, "first attempt", tt.first)
					return
				}
				_, _ = w.Write([]byte(`{"id":"7"}`))
			}))
			defer srv.Close()

			c, err := NewClient(srv.URL+"/api/webhooks/1/tok", Options{RetryMax: 2, RetryWait: time.Millisecond, Rate: rate.Inf})
			if err != nil {
				t.Fatal(err)
			}
			id, err := c.Create(context.Background(), sampleMessage("x"))
			if tt.wantErr {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.Status != tt.first {
					t.Fatalf("Create err = %v, want HTTP %d", err, tt.first)
				}
			} else if err != nil || id != "7" {
				t.Fatalf("Create = %q, %v", id, err)
			}

			mu.Lock()
			defer mu.Unlock()
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestIDStore(t *testing.T) {
	s := &IDStore{Path: filepath.Join(t.TempDir(), "message-id.txt")}

	id, err := s.Load()
	if err != nil || id != "" {
		t.Fatalf("Load on missing file = %q, %v", id, err)
	}
	if err := s.Save("123456789"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	id, err = s.Load()
	if err != nil || id != "123456789" {
		t.Errorf("Load = %q, %v", id, err)
	}
	rec := StoredID{ID: "987654321", Replaces: "123456789"}
	if err := s.SaveRecord(rec); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	got, err := s.LoadRecord()
	if err != nil || got != rec {
		t.Errorf("LoadRecord = %+v, %v; want %+v", got, err, rec)
	}
	if id, _ := s.Load(); id != "987654321" {
		t.Errorf("Load after SaveRecord = %q", id)
	}
}
