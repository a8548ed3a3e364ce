package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type backend struct {
	mu       sync.Mutex
	requests []translateRequest
	inFlight int32
	maxSeen  int32
	delay    time.Duration
	fail     func(n int) bool // fail the n-th request (1-based)
}

func (b *backend) handler(w http.ResponseWriter, r *http.Request) {
	cur := atomic.AddInt32(&b.inFlight, 1)
	defer atomic.AddInt32(&b.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&b.maxSeen)
		if cur <= seen || atomic.CompareAndSwapInt32(&b.maxSeen, seen, cur) {
			break
		}
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.requests = append(b.requests, req)
	n := len(b.requests)
	b.mu.Unlock()
	if b.fail != nil && b.fail(n) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(translateResponse{TranslatedText: "[" + req.Target + "] " + req.Text})
}

func (b *backend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func newTestRelay(t *testing.T, url string) *Relay {
	t.Helper()
	r, err := NewRelay(url, "", "en", "lt")
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}
	return r
}

func TestRelay_EmptyInputNoRequest(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace", text: "   \t\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := &backend{}
			srv := httptest.NewServer(http.HandlerFunc(be.handler))
			defer srv.Close()
			r := newTestRelay(t, srv.URL)

			res := <-r.Enqueue(context.Background(), tt.text)
			if res.OK {
				t.Error("empty input resolved OK")
			}
			if got := be.count(); got != 0 {
				t.Errorf("backend got %d requests, want 0", got)
			}
		})
	}
}

func TestRelay_SerializesRequests(t *testing.T) {
	be := &backend{delay: 30 * time.Millisecond}
	srv := httptest.NewServer(http.HandlerFunc(be.handler))
	defer srv.Close()
	r := newTestRelay(t, srv.URL)

	var chans []<-chan Result
	for i := 0; i < 3; i++ {
		chans = append(chans, r.Enqueue(context.Background(), fmt.Sprintf("text %d", i)))
	}
	for i, ch := range chans {
		res := <-ch
		if !res.OK {
			t.Fatalf("item %d did not resolve OK", i)
		}
		if want := fmt.Sprintf("[lt] text %d", i); res.Text != want {
			t.Errorf("item %d = %q, want %q", i, res.Text, want)
		}
	}
	if got := atomic.LoadInt32(&be.maxSeen); got > 1 {
		t.Errorf("observed %d concurrent requests, want at most 1", got)
	}
	if got := be.count(); got != 3 {
		t.Errorf("backend got %d requests, want 3", got)
	}
}

func TestRelay_FailOpen(t *testing.T) {
	be := &backend{fail: func(n int) bool { return n == 1 }}
	srv := httptest.NewServer(http.HandlerFunc(be.handler))
	defer srv.Close()
	r := newTestRelay(t, srv.URL)

	first := r.Enqueue(context.Background(), "broken one")
	second := r.Enqueue(context.Background(), "fine one")

	if res := <-first; !res.OK || res.Text != "broken one" {
		t.Errorf("failed item = %+v, want original text back", res)
	}
	if res := <-second; !res.OK || res.Text != "[lt] fine one" {
		t.Errorf("queue halted after failure: %+v", res)
	}
}

func TestRelay_TargetCapturedAtEnqueue(t *testing.T) {
	be := &backend{delay: 20 * time.Millisecond}
	srv := httptest.NewServer(http.HandlerFunc(be.handler))
	defer srv.Close()
	r := newTestRelay(t, srv.URL)

	first := r.Enqueue(context.Background(), "before")
	r.SetTargetLanguage("fr")
	second := r.Enqueue(context.Background(), "after")

	if res := <-first; res.Lang != "lt" {
		t.Errorf("first item lang = %q, want lt", res.Lang)
	}
	if res := <-second; res.Lang != "fr" {
		t.Errorf("second item lang = %q, want fr", res.Lang)
	}
	be.mu.Lock()
	defer be.mu.Unlock()
	if be.requests[0].Target != "lt" || be.requests[1].Target != "fr" {
		t.Errorf("backend targets = %q, %q, want lt, fr", be.requests[0].Target, be.requests[1].Target)
	}
}

func TestRelay_ClearDropsPending(t *testing.T) {
	be := &backend{delay: 80 * time.Millisecond}
	srv := httptest.NewServer(http.HandlerFunc(be.handler))
	defer srv.Close()
	r := newTestRelay(t, srv.URL)

	first := r.Enqueue(context.Background(), "in flight")
	// let the worker pick the first item up before clearing
	time.Sleep(20 * time.Millisecond)
	second := r.Enqueue(context.Background(), "pending")
	r.Clear()

	if res := <-second; res.OK {
		t.Errorf("cleared item resolved OK: %+v", res)
	}
	if res := <-first; !res.OK || res.Text != "[lt] in flight" {
		t.Errorf("in-flight item = %+v, want delivered result", res)
	}
	if got := be.count(); got != 1 {
		t.Errorf("backend got %d requests, want 1", got)
	}
}

func TestRelay_LanguagesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	r := newTestRelay(t, srv.URL)

	langs := r.Languages(context.Background())
	if len(langs) == 0 {
		t.Fatal("no fallback languages")
	}
	if langs[0].Code != "en" {
		t.Errorf("first fallback language = %q, want en", langs[0].Code)
	}
}

func TestRelay_Languages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/languages" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode([]Language{{Code: "it", Name: "Italian"}})
	}))
	defer srv.Close()
	r := newTestRelay(t, srv.URL)

	langs := r.Languages(context.Background())
	if len(langs) != 1 || langs[0].Code != "it" {
		t.Errorf("languages = %+v, want single it entry", langs)
	}
}

func detectMux(be *backend, detects *int32, fail bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(detects, 1)
		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([]detectResponse{{Language: "es", Confidence: 0.97}})
	})
	mux.HandleFunc("/translate", be.handler)
	return mux
}

func TestRelay_Detect(t *testing.T) {
	var detects int32
	be := &backend{}
	srv := httptest.NewServer(detectMux(be, &detects, false))
	defer srv.Close()
	r := newTestRelay(t, srv.URL)

	lang, err := r.Detect(context.Background(), "hola")
	if err != nil {
		t.Fatalf("Detect() failed: %v", err)
	}
	if lang != "es" {
		t.Errorf("Detect() = %q, want es", lang)
	}
}

func TestRelay_DetectEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]detectResponse{})
	}))
	defer srv.Close()
	r := newTestRelay(t, srv.URL)

	if _, err := r.Detect(context.Background(), "hola"); err == nil {
		t.Error("Detect() succeeded on empty response")
	}
}

func TestRelay_SourceDetectedWhenEmpty(t *testing.T) {
	var detects int32
	be := &backend{}
	srv := httptest.NewServer(detectMux(be, &detects, false))
	defer srv.Close()
	r, err := NewRelay(srv.URL, "", "", "lt")
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	<-r.Enqueue(context.Background(), "hola")
	<-r.Enqueue(context.Background(), "buenos dias")

	if got := atomic.LoadInt32(&detects); got != 1 {
		t.Errorf("backend got %d detect calls, want 1", got)
	}
	be.mu.Lock()
	defer be.mu.Unlock()
	for i, req := range be.requests {
		if req.Source != "es" {
			t.Errorf("request %d source = %q, want es", i, req.Source)
		}
	}
}

func TestRelay_SourceDetectFailureFallsBack(t *testing.T) {
	var detects int32
	be := &backend{}
	srv := httptest.NewServer(detectMux(be, &detects, true))
	defer srv.Close()
	r, err := NewRelay(srv.URL, "", "", "lt")
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	if res := <-r.Enqueue(context.Background(), "hola"); !res.OK {
		t.Errorf("item not delivered: %+v", res)
	}
	be.mu.Lock()
	defer be.mu.Unlock()
	if len(be.requests) != 1 || be.requests[0].Source != "auto" {
		t.Errorf("requests = %+v, want single auto-source request", be.requests)
	}
}

func TestStaticLister(t *testing.T) {
	l := StaticLister(DefaultLanguages())
	langs := l.Languages(context.Background())
	if len(langs) == 0 || langs[0].Code != "en" {
		t.Errorf("languages = %+v, want defaults", langs)
	}
}
