package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgallion1/docparse/internal/document"
)

func testSource() *document.Source {
	return &document.Source{
		Name:      "doc.pdf",
		Data:      []byte("%PDF-1.7 test"),
		Kind:      document.KindPDF,
		MIMEType:  "application/pdf",
		PageCount: 4,
	}
}

func TestParsePart_Success(t *testing.T) {
	var gotReq parseRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/parse" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"markdown":"# Page","chunks":[{"chunk_type":"text","text":"Page","grounding":[{"page":0,"box":{"l":0.1,"t":0.1,"r":0.9,"b":0.2}}]}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 0)
	res, err := c.ParsePart(context.Background(), testSource(), document.Part{Index: 1, StartPage: 3, EndPage: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Markdown != "# Page" {
		t.Errorf("expected markdown %q, got %q", "# Page", res.Markdown)
	}
	if len(res.Chunks) != 1 || res.Chunks[0].Type != document.ChunkText {
		t.Errorf("unexpected chunks: %+v", res.Chunks)
	}
	if gotReq.StartPage != 3 || gotReq.EndPage != 4 {
		t.Errorf("expected page range 3-4, got %d-%d", gotReq.StartPage, gotReq.EndPage)
	}
	if gotReq.MIMEType != "application/pdf" {
		t.Errorf("unexpected mime type %q", gotReq.MIMEType)
	}
}

func TestParsePart_RateLimitedWithHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limit exceeded"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 0)
	_, err := c.ParsePart(context.Background(), testSource(), document.Part{StartPage: 1, EndPage: 2})

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Kind != KindRateLimited {
		t.Errorf("expected kind %s, got %s", KindRateLimited, remote.Kind)
	}
	if !remote.Transient() {
		t.Error("rate limit should be transient")
	}
	if remote.RetryAfter != 7*time.Second {
		t.Errorf("expected retry-after 7s, got %s", remote.RetryAfter)
	}
}

func TestParsePart_StatusClassification(t *testing.T) {
	cases := []struct {
		status    int
		wantKind  ErrorKind
		transient bool
	}{
		{status: http.StatusTooManyRequests, wantKind: KindRateLimited, transient: true},
		{status: http.StatusInternalServerError, wantKind: KindServerError, transient: true},
		{status: http.StatusBadGateway, wantKind: KindServerError, transient: true},
		{status: http.StatusGatewayTimeout, wantKind: KindTimeout, transient: true},
		{status: http.StatusBadRequest, wantKind: KindBadRequest, transient: false},
		{status: http.StatusUnprocessableEntity, wantKind: KindBadRequest, transient: false},
		{status: http.StatusUnauthorized, wantKind: KindAuthError, transient: false},
		{status: http.StatusForbidden, wantKind: KindAuthError, transient: false},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := NewClient(srv.URL, "test-key", 0)
		_, err := c.ParsePart(context.Background(), testSource(), document.Part{StartPage: 1, EndPage: 1})
		srv.Close()

		var remote *RemoteError
		if !errors.As(err, &remote) {
			t.Fatalf("status %d: expected RemoteError, got %v", tc.status, err)
		}
		if remote.Kind != tc.wantKind {
			t.Errorf("status %d: expected kind %s, got %s", tc.status, tc.wantKind, remote.Kind)
		}
		if remote.Transient() != tc.transient {
			t.Errorf("status %d: expected transient=%v", tc.status, tc.transient)
		}
		if remote.StatusCode != tc.status {
			t.Errorf("status %d: recorded status %d", tc.status, remote.StatusCode)
		}
	}
}

func TestParsePart_RateLimiterDeadlineIsTransientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"markdown":"","chunks":[]}}`))
	}))
	defer srv.Close()

	// One token burst at 0.05 rps: the first call drains the bucket and the
	// next token is 20 seconds away.
	c := NewClient(srv.URL, "test-key", 0.05)
	if _, err := c.ParsePart(context.Background(), testSource(), document.Part{StartPage: 1, EndPage: 1}); err != nil {
		t.Fatalf("first call should pass the limiter: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ParsePart(ctx, testSource(), document.Part{StartPage: 1, EndPage: 1})

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError when the limiter wait exceeds the deadline, got %v", err)
	}
	if remote.Kind != KindTimeout {
		t.Errorf("expected kind %s, got %s", KindTimeout, remote.Kind)
	}
	if !IsTransient(err) {
		t.Error("a limiter-induced deadline must be retryable")
	}
}

func TestParsePart_RateLimiterCancellationPassesThrough(t *testing.T) {
	c := NewClient("http://localhost:0", "test-key", 0.05)
	c.limiter.AllowN(time.Now(), 1) // Drain the burst so Wait must block.

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ParsePart(ctx, testSource(), document.Part{StartPage: 1, EndPage: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParsePart_APIErrorInBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"type":"invalid_document","message":"cannot decode pages"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 0)
	_, err := c.ParsePart(context.Background(), testSource(), document.Part{StartPage: 1, EndPage: 1})

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Kind != KindBadRequest {
		t.Errorf("expected BadRequest, got %s", remote.Kind)
	}
	if IsTransient(err) {
		t.Error("body-level API errors must not be retried")
	}
}

func TestParsePart_RecordsStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"markdown":"","chunks":[]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 0)
	for range 3 {
		if _, err := c.ParsePart(context.Background(), testSource(), document.Part{StartPage: 1, EndPage: 1}); err != nil {
			t.Fatal(err)
		}
	}
	snap := c.Stats.Snapshot()
	if snap.Attempts != 3 {
		t.Errorf("expected 3 attempts recorded, got %d", snap.Attempts)
	}
	if snap.Count != 3 {
		t.Errorf("expected 3 latency samples, got %d", snap.Count)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(&RemoteError{Kind: KindBadRequest}); got != "BadRequest" {
		t.Errorf("expected BadRequest, got %s", got)
	}
	if got := KindOf(context.Canceled); got != "Cancelled" {
		t.Errorf("expected Cancelled, got %s", got)
	}
	if got := KindOf(errors.New("boom")); got != "Error" {
		t.Errorf("expected Error, got %s", got)
	}
}
