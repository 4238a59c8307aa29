package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// OpenAIClient implements GenAI on the OpenAI API. Structured output schemas
// are not enforced; JSON mode keeps the response parseable and the callers
// validate every field anyway.
type OpenAIClient struct {
	client          *openai.Client
	generativeModel string
	embeddingModel  openai.EmbeddingModel
}

type OpenAIOption func(*OpenAIClient)

func WithOpenAIGenerativeModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.generativeModel = model
	}
}

func WithOpenAIEmbeddingModel(model openai.EmbeddingModel) OpenAIOption {
	return func(c *OpenAIClient) {
		c.embeddingModel = model
	}
}

func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		client:          openai.NewClient(apiKey),
		generativeModel: openai.GPT4oMini,
		embeddingModel:  openai.SmallEmbedding3,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string, _ *genai.Schema) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.generativeModel,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to create chat completion")
	}

	if len(resp.Choices) == 0 {
		return "", goerr.New("empty completion response from openai")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Embedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.embeddingModel,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embeddings")
	}

	if len(resp.Data) == 0 {
		return nil, goerr.New("empty embedding response from openai")
	}

	return resp.Data[0].Embedding, nil
}
