package video

import (
	"context"
	"errors"
	"time"

	"google.golang.org/genai"

	"telegram-video-gen/internal/domain"
	"telegram-video-gen/internal/domain/ports/adapter"
)

var _ adapter.VideoGenAdapter = (*VeoAdapter)(nil)

// VeoAdapter generates video through the Gemini API's Veo models using the
// official SDK. Veo has no callback delivery; the operation is polled until
// done or the caller's budget runs out.
type VeoAdapter struct {
	client       *genai.Client
	defaultModel string
	pollEvery    time.Duration
}

func NewVeoAdapter(ctx context.Context, apiKey, baseURL, defaultModel string) (*VeoAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("veo: empty api key")
	}
	if defaultModel == "" {
		defaultModel = "veo-2.0-generate-001"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &VeoAdapter{client: c, defaultModel: defaultModel, pollEvery: 10 * time.Second}, nil
}

func (v *VeoAdapter) Name() string { return "veo" }

func (v *VeoAdapter) Generate(ctx context.Context, req adapter.GenerateRequest, notify adapter.ProgressFunc) (*adapter.GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = v.defaultModel
	}

	op, err := v.client.Models.GenerateVideos(ctx, model, req.Prompt, nil, nil)
	if err != nil {
		return nil, err
	}
	if notify != nil {
		notify(adapter.ProgressUpdate{TaskID: op.Name, State: "queued"})
	}

	ticker := time.NewTicker(v.pollEvery)
	defer ticker.Stop()
	for !op.Done {
		select {
		case <-ctx.Done():
			return &adapter.GenerateResult{TaskID: op.Name}, ctx.Err()
		case <-ticker.C:
		}
		op, err = v.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			if ctx.Err() != nil {
				return &adapter.GenerateResult{TaskID: op.Name}, ctx.Err()
			}
			return nil, err
		}
		if notify != nil {
			notify(adapter.ProgressUpdate{TaskID: op.Name, State: "generating"})
		}
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return nil, domain.ErrEmptyResult
	}
	vid := op.Response.GeneratedVideos[0].Video
	if vid == nil || vid.URI == "" {
		return nil, domain.ErrEmptyResult
	}
	return &adapter.GenerateResult{TaskID: op.Name, VideoURL: vid.URI, Completed: true}, nil
}
