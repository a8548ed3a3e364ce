package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/Kerim-Sabic/free-cluely/internal/utils"
)

// Result is the outcome of one enqueued translation. OK is false when the
// input was empty and nothing was sent to the backend, and for items
// dropped by Clear.
type Result struct {
	Text string
	Lang string
	OK   bool
}

// Language is one entry of the backend's language list.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var defaultLanguages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "lt", Name: "Lithuanian"},
}

// DefaultLanguages returns a copy of the built-in language list.
func DefaultLanguages() []Language {
	return append([]Language(nil), defaultLanguages...)
}

// StaticLister serves a fixed language list. It stands in for a relay
// when no translation backend is configured.
type StaticLister []Language

func (l StaticLister) Languages(ctx context.Context) []Language { return l }

// autoSource lets the backend pick the source language per request.
const autoSource = "auto"

// Relay translates text through a LibreTranslate-style backend with at
// most one request in flight. Completed requests drain the pending queue
// on their own. Failures are fail open: the caller gets the original text
// back and the queue keeps moving.
type Relay struct {
	httpclient *http.Client
	url        string
	apiKey     string
	source     string
	timeout    time.Duration

	mu         sync.Mutex
	target     string
	detected   string
	pending    []*item
	processing bool
}

type item struct {
	ctx            context.Context
	text           string
	source, target string
	res            chan Result
}

// NewRelay creates a translation relay for the given backend URL. An
// empty sourceLang turns on auto-detection: the first translated item
// asks the backend to identify the language and the answer is cached.
func NewRelay(url, apiKey, sourceLang, targetLang string) (*Relay, error) {
	if url == "" {
		return nil, fmt.Errorf("no url")
	}
	res := &Relay{
		url:        strings.TrimSuffix(url, "/"),
		apiKey:     apiKey,
		source:     sourceLang,
		target:     targetLang,
		timeout:    time.Second * 10,
		httpclient: translateHTTPClient(),
	}
	goapp.Log.Info().Str("url", url).Str("source", sourceLang).Str("target", targetLang).Msg("Translator")
	return res, nil
}

// SetTargetLanguage changes the target for subsequently enqueued items.
// Items already enqueued keep the target in effect when they were added.
func (r *Relay) SetTargetLanguage(lang string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = lang
}

func (r *Relay) TargetLanguage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// Enqueue appends text to the pending queue and returns a channel that
// delivers exactly one Result and is then closed. Whitespace-only input
// resolves immediately with OK=false, no request is made.
func (r *Relay) Enqueue(ctx context.Context, text string) <-chan Result {
	res := make(chan Result, 1)
	if strings.TrimSpace(text) == "" {
		res <- Result{}
		close(res)
		return res
	}
	r.mu.Lock()
	it := &item{ctx: ctx, text: text, source: r.source, target: r.target, res: res}
	r.pending = append(r.pending, it)
	if !r.processing {
		r.processing = true
		go r.process()
	}
	r.mu.Unlock()
	return res
}

// Clear drops all pending items, resolving their channels with the zero
// Result. An in-flight request is not cancelled, its result is still
// delivered to its caller.
func (r *Relay) Clear() {
	r.mu.Lock()
	dropped := r.pending
	r.pending = nil
	r.mu.Unlock()
	for _, it := range dropped {
		it.res <- Result{}
		close(it.res)
	}
}

func (r *Relay) process() {
	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.processing = false
			r.mu.Unlock()
			return
		}
		it := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()

		source := it.source
		if source == "" {
			source = r.resolveSource(it.ctx, it.text)
		}
		out, err := r.translate(it.ctx, it.text, source, it.target)
		if err != nil {
			// fail open: keep the original text
			goapp.Log.Error().Err(err).Msg("translate failed, keeping original")
			out = it.text
		}
		it.res <- Result{Text: out, Lang: it.target, OK: true}
		close(it.res)
	}
}

func (r *Relay) translate(ctx context.Context, text, source, target string) (string, error) {
	defer utils.MeasureTime("translate", time.Now())
	ctx, cancelF := context.WithTimeout(ctx, r.timeout)
	defer cancelF()

	b := new(bytes.Buffer)
	err := json.NewEncoder(b).Encode(translateRequest{Text: text, Source: source, Target: target, APIKey: r.apiKey})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, r.url+"/translate", b)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(ctx)
	resp, err := r.httpclient.Do(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
		return "", fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
	}
	res := &translateResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", err
	}
	return res.TranslatedText, nil
}

// resolveSource identifies the source language through the backend once
// and caches the answer for the rest of the relay's life. When detection
// fails the backend is left to pick per request.
func (r *Relay) resolveSource(ctx context.Context, text string) string {
	r.mu.Lock()
	if r.detected != "" {
		res := r.detected
		r.mu.Unlock()
		return res
	}
	r.mu.Unlock()
	lang, err := r.Detect(ctx, text)
	if err != nil {
		goapp.Log.Error().Err(err).Msg("can't detect language")
		return autoSource
	}
	goapp.Log.Info().Str("lang", lang).Msg("detected source language")
	r.mu.Lock()
	r.detected = lang
	r.mu.Unlock()
	return lang
}

// Detect returns the backend's best guess for the language of the text.
func (r *Relay) Detect(ctx context.Context, text string) (string, error) {
	ctx, cancelF := context.WithTimeout(ctx, r.timeout)
	defer cancelF()

	b := new(bytes.Buffer)
	err := json.NewEncoder(b).Encode(detectRequest{Text: text, APIKey: r.apiKey})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, r.url+"/detect", b)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(ctx)
	resp, err := r.httpclient.Do(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
		return "", fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
	}
	var res []detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", err
	}
	if len(res) == 0 {
		return "", fmt.Errorf("empty detect response")
	}
	return res[0].Language, nil
}

// Languages lists the backend's supported languages. When the backend is
// unreachable the default list is returned, the failure only logged.
func (r *Relay) Languages(ctx context.Context) []Language {
	res, err := r.languages(ctx)
	if err != nil {
		goapp.Log.Error().Err(err).Msg("can't list languages, using defaults")
		return defaultLanguages
	}
	return res
}

func (r *Relay) languages(ctx context.Context) ([]Language, error) {
	ctx, cancelF := context.WithTimeout(ctx, r.timeout)
	defer cancelF()

	req, err := http.NewRequest(http.MethodGet, r.url+"/languages", nil)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	resp, err := r.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
		return nil, fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
	}
	var res []Language
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	return res, nil
}

type translateRequest struct {
	Text   string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText   string `json:"translatedText"`
	DetectedLanguage *struct {
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	} `json:"detectedLanguage,omitempty"`
}

type detectRequest struct {
	Text   string `json:"q"`
	APIKey string `json:"api_key,omitempty"`
}

type detectResponse struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1000))
	_ = resp.Body.Close()
}

func translateHTTPClient() *http.Client {
	return &http.Client{Transport: newTransport()}
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 5
	res.MaxIdleConns = 2
	res.MaxIdleConnsPerHost = 2
	res.IdleConnTimeout = 90 * time.Second
	return res
}
