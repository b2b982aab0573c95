package openai

import (
	"context"
	"fmt"

	"github.com/skein-labs/skein/backend/pkg/provider"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Client implements provider.ModelClient and provider.Embedder against
// an OpenAI-compatible API.
type Client struct {
	chatModel  string
	embedModel string

	chat  *openai.Client
	embed *openai.Client
}

// ClientParams configures a Client. Separate endpoints for chat and
// embeddings allow mixing hosted and self-hosted deployments.
type ClientParams struct {
	ChatModel  string
	EmbedModel string

	ChatURL  string
	ChatKey  string
	EmbedURL string
	EmbedKey string
}

// NewClient creates an OpenAI-backed model client.
func NewClient(params ClientParams) *Client {
	return &Client{
		chatModel:  params.ChatModel,
		embedModel: params.EmbedModel,
		chat:       newAPIClient(params.ChatURL, params.ChatKey),
		embed:      newAPIClient(params.EmbedURL, params.EmbedKey),
	}
}

func newAPIClient(baseURL, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(options...)
	return &client
}

// CompleteWithFormat sends a prompt with a JSON schema response format
// and unmarshals the answer into out.
func (c *Client) CompleteWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...provider.Option,
) error {
	if c.chat == nil {
		return fmt.Errorf("chat client not configured")
	}

	options := provider.Options{Temperature: 0.1}
	for _, o := range opts {
		o(&options)
	}

	schema := provider.GenerateSchema(out)
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        name,
		Description: openai.String(description),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	msgs := []openai.ChatCompletionMessageParamUnion{}
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.chatModel),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}

	response, err := c.chat.Chat.Completions.New(ctx, body)
	if err != nil {
		return err
	}
	if len(response.Choices) == 0 {
		return fmt.Errorf("no choices in response from model")
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return fmt.Errorf("empty response from model (finish_reason: %s)", response.Choices[0].FinishReason)
	}
	return provider.UnmarshalFlexible(message, out)
}

// Embed generates a vector embedding for the input text.
func (c *Client) Embed(ctx context.Context, input string) ([]float32, error) {
	if c.embed == nil {
		return nil, fmt.Errorf("embedding client not configured")
	}

	res, err := c.embed.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{input},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(res.Data) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(res.Data))
	}

	embedding := make([]float32, len(res.Data[0].Embedding))
	for i, v := range res.Data[0].Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}
