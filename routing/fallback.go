package routing

import (
	"context"
	"errors"
	"log"
	"strings"

	"gemchat/providers"
)

// Generator is the transport the chain drives. *providers.Client satisfies
// it; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, params providers.GenerationParams) (string, error)
}

// FailureKind labels a terminal chain failure.
type FailureKind int

const (
	FailureCredential FailureKind = iota
	FailureRateLimited
	FailureServer
	FailureExhausted
)

func (k FailureKind) String() string {
	switch k {
	case FailureCredential:
		return "credential_invalid"
	case FailureRateLimited:
		return "rate_limited"
	case FailureServer:
		return "server_error"
	default:
		return "exhausted"
	}
}

// CompletionError is the terminal outcome of a chain pass that produced no
// answer. Reason is what the user sees, verbatim.
type CompletionError struct {
	Kind      FailureKind
	Candidate string // candidate that triggered the abort; empty on exhaustion
	Attempts  int
	Reason    string
}

func (e *CompletionError) Error() string { return e.Reason }

// Result is a successful chain pass.
type Result struct {
	Text     string
	Model    string // winning candidate
	Attempts int    // network calls made, winner included
}

// Chain walks an ordered candidate list until one model answers. The order
// is fixed at construction: no reordering, no health tracking, no retries —
// the list itself is the only redundancy.
type Chain struct {
	candidates []string
	params     providers.GenerationParams
	gen        Generator
}

// NewChain builds a Chain over candidates in priority order.
func NewChain(gen Generator, candidates []string, params providers.GenerationParams) *Chain {
	return &Chain{
		candidates: candidates,
		params:     params,
		gen:        gen,
	}
}

// Candidates returns the candidate list in attempt order.
func (c *Chain) Candidates() []string { return c.candidates }

// Per-attempt disposition. Each attempt either wins, skips to the next
// candidate, or aborts the whole pass.
type outcome struct {
	text  string           // success
	skip  string           // skip reason, recorded for the exhaustion message
	abort *CompletionError // terminal failure
}

// Complete runs one pass over the candidate list and returns the first
// usable answer. The same prompt and params go to every candidate.
func (c *Chain) Complete(ctx context.Context, prompt string) (*Result, error) {
	if len(c.candidates) == 0 {
		return nil, &CompletionError{Kind: FailureExhausted, Reason: "all candidates failed"}
	}

	lastSkip := ""
	for i, model := range c.candidates {
		out := c.attempt(ctx, model, prompt)
		switch {
		case out.abort != nil:
			out.abort.Attempts = i + 1
			log.Printf("[Chain] %s aborted pass after %d attempt(s): %s", model, i+1, out.abort.Reason)
			return nil, out.abort
		case out.skip != "":
			log.Printf("[Chain] %s skipped: %s", model, out.skip)
			lastSkip = out.skip
		default:
			return &Result{Text: out.text, Model: model, Attempts: i + 1}, nil
		}
	}

	reason := lastSkip
	if reason == "" {
		reason = "all candidates failed"
	}
	return nil, &CompletionError{
		Kind:     FailureExhausted,
		Attempts: len(c.candidates),
		Reason:   reason,
	}
}

func (c *Chain) attempt(ctx context.Context, model, prompt string) outcome {
	text, err := c.gen.Generate(ctx, model, prompt, c.params)
	if err == nil {
		return outcome{text: text}
	}
	return classify(model, err)
}

// classify maps an attempt error to its disposition. Structured APIError
// kinds are authoritative; only opaque transport errors fall back to text
// inspection of the error message.
func classify(model string, err error) outcome {
	var apiErr *providers.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case providers.KindCredential:
			return outcome{abort: &CompletionError{
				Kind: FailureCredential, Candidate: model, Reason: "invalid credential",
			}}
		case providers.KindRateLimited:
			return outcome{abort: &CompletionError{
				Kind: FailureRateLimited, Candidate: model, Reason: "rate limited",
			}}
		case providers.KindServer:
			return outcome{abort: &CompletionError{
				Kind: FailureServer, Candidate: model, Reason: "server error",
			}}
		default:
			// KindNotFound, KindMalformed, KindOther: next candidate
			return outcome{skip: apiErr.Error()}
		}
	}

	// Opaque transport error. Sniffing the message is fragile (a benign
	// error mentioning "invalid" aborts the pass) but with no status code
	// there is nothing better to go on.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "invalid") {
		return outcome{abort: &CompletionError{
			Kind: FailureCredential, Candidate: model, Reason: "invalid credential",
		}}
	}
	if strings.Contains(msg, "rate limit") {
		return outcome{abort: &CompletionError{
			Kind: FailureRateLimited, Candidate: model, Reason: "rate limited",
		}}
	}
	return outcome{skip: err.Error()}
}
