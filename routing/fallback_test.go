package routing_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"gemchat/providers"
	"gemchat/routing"
)

// fakeGenerator scripts one result per model and records every call.
type fakeGenerator struct {
	results map[string]fakeResult
	calls   []string
	prompts []string
}

type fakeResult struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(ctx context.Context, model, prompt string, params providers.GenerationParams) (string, error) {
	f.calls = append(f.calls, model)
	f.prompts = append(f.prompts, prompt)
	r, ok := f.results[model]
	if !ok {
		return "", fmt.Errorf("unscripted model %s", model)
	}
	return r.text, r.err
}

func statusErr(model string, status int) error {
	kind := providers.KindOther
	switch {
	case status == http.StatusUnauthorized:
		kind = providers.KindCredential
	case status == http.StatusNotFound:
		kind = providers.KindNotFound
	case status == http.StatusTooManyRequests:
		kind = providers.KindRateLimited
	case status >= 500:
		kind = providers.KindServer
	}
	return &providers.APIError{Model: model, StatusCode: status, Kind: kind, Message: "nope"}
}

func TestFirstSuccessWins(t *testing.T) {
	gen := &fakeGenerator{results: map[string]fakeResult{
		"a": {err: statusErr("a", http.StatusNotFound)},
		"b": {text: "Gravity is..."},
		"c": {text: "should never be reached"},
	}}
	chain := routing.NewChain(gen, []string{"a", "b", "c"}, providers.DefaultGenerationParams())

	result, err := chain.Complete(context.Background(), "What is gravity?")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.Text != "Gravity is..." {
		t.Errorf("Expected second candidate's text, got %q", result.Text)
	}
	if result.Model != "b" {
		t.Errorf("Expected winning model 'b', got %q", result.Model)
	}
	if len(gen.calls) != 2 {
		t.Errorf("Expected exactly 2 calls, got %d (%v)", len(gen.calls), gen.calls)
	}
	if result.Attempts != 2 {
		t.Errorf("Expected Attempts=2, got %d", result.Attempts)
	}
}

func TestSamePromptEveryAttempt(t *testing.T) {
	gen := &fakeGenerator{results: map[string]fakeResult{
		"a": {err: statusErr("a", http.StatusNotFound)},
		"b": {err: statusErr("b", http.StatusNotFound)},
		"c": {text: "ok"},
	}}
	chain := routing.NewChain(gen, []string{"a", "b", "c"}, providers.DefaultGenerationParams())

	if _, err := chain.Complete(context.Background(), "same prompt"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	for i, p := range gen.prompts {
		if p != "same prompt" {
			t.Errorf("Attempt %d saw prompt %q", i, p)
		}
	}
}

func TestTerminalStatusAbortsImmediately(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   routing.FailureKind
		reason string
	}{
		{"credential", http.StatusUnauthorized, routing.FailureCredential, "invalid credential"},
		{"rate limited", http.StatusTooManyRequests, routing.FailureRateLimited, "rate limited"},
		{"server 500", http.StatusInternalServerError, routing.FailureServer, "server error"},
		{"server 503", http.StatusServiceUnavailable, routing.FailureServer, "server error"},
	}

	for _, tc := range tests {
		for _, position := range []int{0, 1, 2} {
			t.Run(fmt.Sprintf("%s at position %d", tc.name, position), func(t *testing.T) {
				candidates := []string{"m0", "m1", "m2", "m3"}
				results := map[string]fakeResult{}
				for i, m := range candidates {
					if i < position {
						results[m] = fakeResult{err: statusErr(m, http.StatusNotFound)}
					} else {
						results[m] = fakeResult{err: statusErr(m, tc.status)}
					}
				}
				gen := &fakeGenerator{results: results}
				chain := routing.NewChain(gen, candidates, providers.DefaultGenerationParams())

				_, err := chain.Complete(context.Background(), "q")
				if err == nil {
					t.Fatal("Expected error, got nil")
				}

				var ce *routing.CompletionError
				if !errors.As(err, &ce) {
					t.Fatalf("Expected *CompletionError, got %T", err)
				}
				if ce.Kind != tc.kind {
					t.Errorf("Expected kind %v, got %v", tc.kind, ce.Kind)
				}
				if err.Error() != tc.reason {
					t.Errorf("Expected reason %q, got %q", tc.reason, err.Error())
				}
				if len(gen.calls) != position+1 {
					t.Errorf("Expected %d calls, got %d (%v)", position+1, len(gen.calls), gen.calls)
				}
			})
		}
	}
}

func TestAllCandidatesExhausted(t *testing.T) {
	candidates := []string{"a", "b", "c"}
	results := map[string]fakeResult{}
	for _, m := range candidates {
		results[m] = fakeResult{err: statusErr(m, http.StatusNotFound)}
	}
	gen := &fakeGenerator{results: results}
	chain := routing.NewChain(gen, candidates, providers.DefaultGenerationParams())

	_, err := chain.Complete(context.Background(), "q")
	var ce *routing.CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *CompletionError, got %T: %v", err, err)
	}
	if ce.Kind != routing.FailureExhausted {
		t.Errorf("Expected FailureExhausted, got %v", ce.Kind)
	}
	if len(gen.calls) != len(candidates) {
		t.Errorf("Expected %d calls, got %d", len(candidates), len(gen.calls))
	}
	// Reason carries the last recorded skip
	last := statusErr("c", http.StatusNotFound).Error()
	if ce.Reason != last {
		t.Errorf("Expected reason %q, got %q", last, ce.Reason)
	}
}

func TestMalformedResponseSkips(t *testing.T) {
	gen := &fakeGenerator{results: map[string]fakeResult{
		"a": {err: &providers.APIError{Model: "a", Kind: providers.KindMalformed, Message: "no candidates"}},
		"b": {text: "recovered"},
	}}
	chain := routing.NewChain(gen, []string{"a", "b"}, providers.DefaultGenerationParams())

	result, err := chain.Complete(context.Background(), "q")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.Text != "recovered" {
		t.Errorf("Expected 'recovered', got %q", result.Text)
	}
}

func TestOpaqueTransportErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantAbort bool
		kind      routing.FailureKind
	}{
		{"benign network failure", errors.New("connection reset by peer"), false, 0},
		{"invalid sniffed", errors.New("API_KEY_INVALID: check your key"), true, routing.FailureCredential},
		{"invalid mixed case", errors.New("Invalid request signature"), true, routing.FailureCredential},
		{"rate limit sniffed", errors.New("upstream Rate Limit exceeded"), true, routing.FailureRateLimited},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := &fakeGenerator{results: map[string]fakeResult{
				"a": {err: tc.err},
				"b": {text: "from b"},
			}}
			chain := routing.NewChain(gen, []string{"a", "b"}, providers.DefaultGenerationParams())

			result, err := chain.Complete(context.Background(), "q")
			if tc.wantAbort {
				var ce *routing.CompletionError
				if !errors.As(err, &ce) {
					t.Fatalf("Expected abort, got result=%v err=%v", result, err)
				}
				if ce.Kind != tc.kind {
					t.Errorf("Expected kind %v, got %v", tc.kind, ce.Kind)
				}
				if len(gen.calls) != 1 {
					t.Errorf("Expected 1 call, got %d", len(gen.calls))
				}
			} else {
				if err != nil {
					t.Fatalf("Expected skip to next candidate, got %v", err)
				}
				if result.Text != "from b" {
					t.Errorf("Expected 'from b', got %q", result.Text)
				}
			}
		})
	}
}

func TestEmptyCandidateList(t *testing.T) {
	gen := &fakeGenerator{results: map[string]fakeResult{}}
	chain := routing.NewChain(gen, nil, providers.DefaultGenerationParams())

	_, err := chain.Complete(context.Background(), "q")
	var ce *routing.CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *CompletionError, got %T", err)
	}
	if ce.Reason != "all candidates failed" {
		t.Errorf("Expected generic reason, got %q", ce.Reason)
	}
	if len(gen.calls) != 0 {
		t.Errorf("Expected no calls, got %d", len(gen.calls))
	}
}
