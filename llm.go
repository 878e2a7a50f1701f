package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"gemchat/config"
	"gemchat/providers"
	"gemchat/routing"
)

var (
	completionChain *routing.Chain
	preamble        string
)

// InitializeCompletion loads models.yaml (or the built-in defaults) and
// wires the candidate chain. Must run before any server starts.
func InitializeCompletion() error {
	cfg, err := config.Load(modelsConfigPath())
	if err != nil {
		return err
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY not set")
	}

	client := providers.NewClient(cfg.Endpoint.BaseURL, apiKey)
	completionChain = routing.NewChain(client, cfg.Candidates, cfg.Generation)
	preamble = cfg.Preamble

	log.Printf("[LLM] Completion chain ready: %d candidate(s), endpoint %s",
		len(cfg.Candidates), cfg.Endpoint.BaseURL)
	if debugMode {
		for i, m := range cfg.Candidates {
			log.Printf("[LLM] candidate %d: %s", i, m)
		}
	}
	return nil
}

// buildPrompt wraps a user message with the fixed instructional preamble.
// Every candidate attempt in a pass sees the identical prompt.
func buildPrompt(userMessage string) string {
	return preamble + "\n\nUser question: " + userMessage
}

// getResponse resolves one user message to answer text through the
// candidate fallback chain. The terminal error's message is safe to show
// to the user verbatim.
func getResponse(ctx context.Context, userMessage string) (string, error) {
	requestID := generateRequestID()
	prompt := buildPrompt(userMessage)

	if debugMode {
		log.Printf("[LLM] %s prompt: %d bytes, sig=%s", requestID, len(prompt), generateSignature(prompt))
	}

	result, err := completionChain.Complete(ctx, prompt)
	if err != nil {
		log.Printf("[LLM] %s failed: %v", requestID, err)
		LogCompletion(requestID, "", attemptsOf(err), prompt, "", err)
		return "", err
	}

	log.Printf("[LLM] %s answered by %s after %d attempt(s)", requestID, result.Model, result.Attempts)
	LogCompletion(requestID, result.Model, result.Attempts, prompt, result.Text, nil)
	return result.Text, nil
}

// attemptsOf pulls the attempt count out of a terminal chain error for the
// audit record.
func attemptsOf(err error) int {
	if ce, ok := err.(*routing.CompletionError); ok {
		return ce.Attempts
	}
	return 0
}
