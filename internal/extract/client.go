package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgallion1/docparse/internal/document"
)

// Result is the parsed payload for one part. Grounding pages are local to
// the part, counting from 0.
type Result struct {
	Markdown string
	Chunks   []document.Chunk
}

// Client calls the remote extraction endpoint for one part at a time.
// A client-side rate limiter smooths request bursts so well-configured
// callers rarely see 429s at all.
type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter

	Stats *CallStats
}

// NewClient creates an extraction client. rps <= 0 disables client-side
// rate limiting.
func NewClient(host, apiKey string, rps float64) *Client {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Client{
		host:   host,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		limiter: limiter,
		Stats:   NewCallStats(time.Hour),
	}
}

// Host returns the configured endpoint host.
func (c *Client) Host() string {
	return c.host
}

type parseRequest struct {
	Document  string `json:"document"` // base64-encoded bytes
	MIMEType  string `json:"mime_type"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
}

type parseResponse struct {
	Data struct {
		Markdown string           `json:"markdown"`
		Chunks   []document.Chunk `json:"chunks"`
	} `json:"data"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParsePart performs one extraction attempt for the given page range of src.
// Failures come back as *RemoteError so callers can classify them.
func (c *Client) ParsePart(ctx context.Context, src *document.Source, part document.Part) (*Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			// The limiter refuses when its wait cannot fit inside the
			// attempt deadline. That exhausts this attempt's time budget
			// the same way a slow response would, so it retries.
			return nil, &RemoteError{Kind: KindTimeout, Message: err.Error()}
		}
	}

	reqBody := parseRequest{
		Document:  base64.StdEncoding.EncodeToString(src.Data),
		MIMEType:  src.MIMEType,
		StartPage: part.StartPage,
		EndPage:   part.EndPage,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/v1/parse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.Stats.RecordAttempt(time.Since(start).Milliseconds())
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			RetryAfter: retryAfterHint(resp),
		}
	}

	var apiResp parseResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, &RemoteError{
			Kind:       KindBadRequest,
			StatusCode: resp.StatusCode,
			Message:    apiResp.Error.Type + ": " + apiResp.Error.Message,
		}
	}

	return &Result{
		Markdown: apiResp.Data.Markdown,
		Chunks:   apiResp.Data.Chunks,
	}, nil
}

// classifyTransport folds network-level failures into the error taxonomy:
// timeouts are timeouts, everything else counts against the server side.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &RemoteError{Kind: KindTimeout, Message: err.Error()}
	}
	return &RemoteError{Kind: KindServerError, Message: err.Error()}
}

// retryAfterHint parses a Retry-After header given in seconds.
func retryAfterHint(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
