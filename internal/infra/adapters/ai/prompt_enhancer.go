package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"telegram-video-gen/internal/domain/ports/adapter"
)

var _ adapter.PromptEnhancer = (*OpenAIPromptEnhancer)(nil)

const enhancerSystemPrompt = `You rewrite short user requests into detailed video generation prompts.
Describe the scene, camera movement, lighting and style in one paragraph.
Answer with the rewritten prompt only.`

// OpenAIPromptEnhancer rewrites raw prompts via Chat Completions before they
// reach a video provider. Input is token-bounded so an oversized prompt never
// blows the request.
type OpenAIPromptEnhancer struct {
	client    openai.Client
	model     string
	maxTokens int
}

func NewOpenAIPromptEnhancer(apiKey, model string, maxPromptTokens int) (*OpenAIPromptEnhancer, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if maxPromptTokens <= 0 {
		maxPromptTokens = 400
	}
	return &OpenAIPromptEnhancer{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxPromptTokens,
	}, nil
}

func (e *OpenAIPromptEnhancer) Enhance(ctx context.Context, prompt string) (string, error) {
	bounded := e.truncate(prompt)

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(enhancerSystemPrompt),
			openai.UserMessage(bounded),
		},
	})
	if err != nil {
		return "", err
	}
	for _, c := range resp.Choices {
		if out := strings.TrimSpace(c.Message.Content); out != "" {
			return out, nil
		}
	}
	return "", errors.New("no choice content")
}

// truncate cuts the prompt to the configured token budget. Counting falls
// back to cl100k_base when the model has no registered encoding.
func (e *OpenAIPromptEnhancer) truncate(prompt string) string {
	enc, err := tiktoken.EncodingForModel(e.model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return prompt
		}
	}
	tokens := enc.Encode(prompt, nil, nil)
	if len(tokens) <= e.maxTokens {
		return prompt
	}
	return enc.Decode(tokens[:e.maxTokens])
}

// NoopEnhancer returns the prompt unchanged; wired when no OpenAI key is set.
type NoopEnhancer struct{}

var _ adapter.PromptEnhancer = (*NoopEnhancer)(nil)

func (NoopEnhancer) Enhance(_ context.Context, prompt string) (string, error) {
	return prompt, nil
}
