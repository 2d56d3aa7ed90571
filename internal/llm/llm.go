// Package llm provides the interface for language-model backed helpers:
// entity and keyword extraction, OCR, and image description. Every
// caller must tolerate failure; the core degrades rather than errors
// when the model is unavailable.
package llm

import (
	"context"
)

// Client defines the model operations the core depends on.
type Client interface {
	// CompleteJSON sends a prompt expected to yield a JSON object and
	// returns the raw completion text.
	CompleteJSON(ctx context.Context, prompt string) (string, error)

	// OCRImage extracts visible text from an image.
	OCRImage(ctx context.Context, image []byte, mimeType string) (string, error)

	// DescribeImage returns a short description of an image's content.
	DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error)

	// Name returns the client name for logging.
	Name() string
}

// Config contains common configuration for LLM clients.
type Config struct {
	Provider string `yaml:"provider"` // openai
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}
