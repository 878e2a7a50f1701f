package main

import (
	"crypto/sha256"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
)

// generateRequestID returns a short unique id for correlating log lines
// and audit rows of one exchange.
func generateRequestID() string {
	return "req_" + uuid.New().String()[:8]
}

// generateSignature creates a hash signature for content
// Used for deduplication and tracking in diagnostics
func generateSignature(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)[:16] // First 16 chars of hash
}

var (
	tokenEncoder     *tiktoken.Tiktoken
	tokenEncoderOnce sync.Once
)

// countTokens approximates the token count of text. The Generative
// Language API doesn't publish its tokenizer, so cl100k_base is close
// enough for audit numbers. Falls back to bytes/4 if the encoding can't
// be loaded.
func countTokens(text string) int {
	tokenEncoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Printf("[countTokens] failed to load encoding: %v", err)
			return
		}
		tokenEncoder = enc
	})

	if tokenEncoder == nil {
		return len(text) / 4
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}
