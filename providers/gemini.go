package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultBaseURL is the Generative Language API root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1"

// ErrorKind classifies a failed generation attempt by its transport-level
// cause. The routing layer decides from the kind whether to try the next
// candidate or abort the whole pass.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindCredential
	KindNotFound
	KindRateLimited
	KindServer
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindCredential:
		return "credential"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindMalformed:
		return "malformed"
	default:
		return "other"
	}
}

// APIError is a classified failure from one generateContent attempt.
type APIError struct {
	Model      string
	StatusCode int // 0 for malformed-body errors
	Kind       ErrorKind
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model %s: status %d (%s): %s", e.Model, e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("model %s: %s: %s", e.Model, e.Kind, e.Message)
}

// classifyStatus maps an HTTP status to an ErrorKind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindCredential
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	default:
		return KindOther
	}
}

// GenerationParams are the sampling knobs sent with every request. They are
// fixed for the lifetime of a Client, identical across candidate attempts.
type GenerationParams struct {
	Temperature     float64 `json:"temperature" yaml:"temperature"`
	TopP            float64 `json:"topP" yaml:"top_p"`
	TopK            int     `json:"topK" yaml:"top_k"`
	MaxOutputTokens int     `json:"maxOutputTokens" yaml:"max_output_tokens"`
}

// DefaultGenerationParams matches the upstream defaults this service has
// always shipped with.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		Temperature:     0.7,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 1024,
	}
}

// generateContent wire format
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig GenerationParams `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
}

// Client talks to the Generative Language generateContent endpoint.
// One Client is shared across all candidate models; the model name is
// interpolated into the URL per attempt.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL.
// The underlying http.Client carries no timeout: callers bound attempts
// with a context where they need one, otherwise the call resolves or
// fails at the transport's own pace.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{},
	}
}

// Generate performs a single generateContent attempt against one model and
// returns the answer text. Failures come back as *APIError except for
// transport-level errors, which are returned as-is for the caller to
// inspect.
func (c *Client) Generate(ctx context.Context, model, prompt string, params GenerationParams) (string, error) {
	body := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: params,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Transport errors echo the request URL, and the URL carries the
		// credential in its query string. Scrub it before the message can
		// reach a log line or an error banner.
		return "", errors.New(redactCredential(err.Error(), c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{
			Model:      model,
			StatusCode: resp.StatusCode,
			Kind:       classifyStatus(resp.StatusCode),
			Message:    string(raw),
		}
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &APIError{
			Model:   model,
			Kind:    KindMalformed,
			Message: fmt.Sprintf("failed to decode response: %v", err),
		}
	}

	text, ok := extractText(&parsed)
	if !ok {
		return "", &APIError{
			Model:   model,
			Kind:    KindMalformed,
			Message: "response has no candidates[0].content",
		}
	}
	return text, nil
}

func redactCredential(msg, key string) string {
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, key, "REDACTED")
}

// extractText pulls the answer out of a parsed response. Absence of
// candidates[0].content (or an empty parts list) means the body is not a
// usable answer.
func extractText(resp *generateResponse) (string, bool) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", false
	}
	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return "", false
	}
	return parts[0].Text, true
}
