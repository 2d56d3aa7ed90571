// Package openai provides an LLM client backed by OpenAI chat models.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/papertrove/papertrove/internal/llm"
	"github.com/sashabaranov/go-openai"
)

// Client implements llm.Client using OpenAI chat completions.
type Client struct {
	client *openai.Client
	model  string
}

var _ llm.Client = (*Client)(nil)

// Config contains configuration for the OpenAI client.
type Config struct {
	APIKey  string
	BaseURL string // Optional custom base URL
	Model   string // Defaults to gpt-4o-mini
}

// New creates a new OpenAI LLM client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
	}, nil
}

// Name returns the client name.
func (c *Client) Name() string {
	return "openai"
}

// CompleteJSON sends a prompt expected to yield a JSON object.
func (c *Client) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// OCRImage extracts visible text from an image via the vision model.
func (c *Client) OCRImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	return c.visionPrompt(ctx, image, mimeType,
		"Extract all visible text from this image. Return only the text, preserving line breaks. If there is no text, return an empty string.")
}

// DescribeImage returns a short description of an image's content.
func (c *Client) DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	return c.visionPrompt(ctx, image, mimeType,
		"Describe this image in two or three sentences, mentioning any documents, logos, amounts, or identifiers visible.")
}

func (c *Client) visionPrompt(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("image is empty")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}
	return resp.Choices[0].Message.Content, nil
}
