package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for chunk embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the vector length of text-embedding-3-small
	DefaultEmbeddingDimensions = 1536
	// DefaultJudgeModel answers attribution questions for the llm strategy
	DefaultJudgeModel = openai.GPT4oMini
)

var (
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrMissingEmbedding is returned when the response omits an input
	ErrMissingEmbedding = errors.New("embedding response is missing items")
)

// EmbeddingAPI embeds a batch of texts. The result is ordered like the input.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatAPI runs a chat completion constrained to a JSON schema and returns the
// raw message content.
type ChatAPI interface {
	CompleteJSON(ctx context.Context, req ChatRequest) (string, error)
}

// ChatRequest is the provider-neutral shape of a judge call.
type ChatRequest struct {
	System string
	User   string
	Schema SchemaSpec
}

// Client wraps the OpenAI API client
type Client struct {
	embeddings EmbeddingAPI
	chat       ChatAPI
	dimensions int
}

type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	judgeModel     string
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	judgeModel := cfg.JudgeModel
	if judgeModel == "" {
		judgeModel = DefaultJudgeModel
	}
	return &OpenAIAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: embeddingModel,
		judgeModel:     judgeModel,
	}
}

// CreateEmbeddings calls the OpenAI API and reorders results by index.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range for %d inputs", item.Index, len(texts))
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

// CompleteJSON sends a deterministic chat completion with a strict JSON schema
// response format.
func (a *OpenAIAdapter) CompleteJSON(ctx context.Context, req ChatRequest) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.judgeModel,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: &req.Schema.Definition,
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	JudgeModel          string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	adapter := NewOpenAIAdapter(cfg)
	return newClient(adapter, adapter, cfg.EmbeddingDimensions)
}

func newClient(embeddings EmbeddingAPI, chat ChatAPI, dimensions int) *Client {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{embeddings: embeddings, chat: chat, dimensions: dimensions}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// Dimensions is the expected embedding length.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// EmbedBatch returns one vector per input in input order. Blank inputs and
// vectors of the wrong length come back nil. A failed call returns a
// classified provider error for the whole batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	send := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		send = append(send, text)
		positions = append(positions, i)
	}
	if len(send) == 0 {
		return out, nil
	}

	vectors, err := c.embeddings.CreateEmbeddings(ctx, send)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", Classify(err))
	}
	if len(vectors) != len(send) {
		return nil, fmt.Errorf("failed to create embeddings: %w", Classify(ErrMissingEmbedding))
	}

	for j, v := range vectors {
		if len(v) != c.dimensions {
			continue
		}
		out[positions[j]] = v
	}
	return out, nil
}
