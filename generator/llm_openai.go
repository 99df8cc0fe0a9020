package generator

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultImageModel = "dall-e-3"

// OpenAILLM serves both text and image generation from one OpenAI-compatible
// endpoint.
type OpenAILLM struct {
	client     openai.Client
	model      string
	imageModel string
}

func NewOpenAILLMFromConfig(cfg *LLMSettings) (*OpenAILLM, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("llm config is nil")
	case cfg.APIKey == "":
		return nil, errors.New("llm api key missing; provide llm.api_key or OPENAI_API_KEY")
	case cfg.Model == "":
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	imageModel := cfg.ImageModel
	if imageModel == "" {
		imageModel = defaultImageModel
	}
	return &OpenAILLM{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		imageModel: imageModel,
	}, nil
}

func chatMessages(prompt Prompt) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(prompt.History)+2)
	msgs = append(msgs, openai.SystemMessage(prompt.System))
	for _, turn := range prompt.History {
		if turn.Role == "assistant" {
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(turn.Content))
			continue
		}
		msgs = append(msgs, openai.UserMessage(turn.Content))
	}
	return append(msgs, openai.UserMessage(prompt.User))
}

func (o *OpenAILLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: chatMessages(prompt),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImages returns base64 PNG payloads, never URLs.
func (o *OpenAILLM) GenerateImages(ctx context.Context, prompt string, n int) ([]string, error) {
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(o.imageModel),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		N:              openai.Int(int64(n)),
	})
	if err != nil {
		return nil, err
	}
	images := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.B64JSON != "" {
			images = append(images, d.B64JSON)
		}
	}
	if len(images) == 0 {
		return nil, errors.New("image model returned no images")
	}
	return images, nil
}
