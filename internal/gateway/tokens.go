package gateway

import (
	"log"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenEstimator estimates token counts for providers that do not report
// usage (the local model server). It uses the cl100k_base encoding, which is
// close enough for accounting purposes, and falls back to a bytes/4 heuristic
// when the encoding cannot be loaded (e.g. offline first run).
type TokenEstimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenEstimator creates a lazy token estimator.
func NewTokenEstimator() *TokenEstimator {
	return &TokenEstimator{}
}

// Estimate returns the approximate token count of text.
func (e *TokenEstimator) Estimate(text string) int {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Printf("WARNING: tiktoken encoding unavailable, using byte heuristic: %v", err)
			return
		}
		e.enc = enc
	})

	if e.enc != nil {
		return len(e.enc.Encode(text, nil, nil))
	}
	// Rough heuristic: ~4 bytes per token for English/code.
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
