package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"telegram-video-gen/internal/domain"
	"telegram-video-gen/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.VideoGenAdapter = (*KlingAdapter)(nil)

// KlingAdapter drives a Kling-compatible generation gateway.
// The gateway acknowledges a task id immediately; the result is then either
// polled from the record endpoint or delivered out-of-band to callBackUrl.
// Submit path: POST {base}/generate, poll path: GET {base}/record-info?taskId=.
type KlingAdapter struct {
	apiKey      string
	base        string
	model       string
	callbackURL string
	client      *http.Client
	pollEvery   time.Duration
}

func NewKlingAdapter(apiKey, model, base, callbackURL string) (*KlingAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("kling api key empty")
	}
	if model == "" {
		model = "kling-v1-6"
	}
	if base == "" {
		base = "https://api.kie.ai/api/v1/kling"
	}
	return &KlingAdapter{
		apiKey:      apiKey,
		base:        strings.TrimRight(base, "/"),
		model:       model,
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		pollEvery:   10 * time.Second,
	}, nil
}

func (k *KlingAdapter) Name() string { return "kling" }

type klingEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type klingTask struct {
	TaskID     string `json:"taskId"`
	State      string `json:"state"`
	ResultJSON string `json:"resultJson"`
	FailMsg    string `json:"failMsg"`
}

func (k *KlingAdapter) Generate(ctx context.Context, req adapter.GenerateRequest, notify adapter.ProgressFunc) (*adapter.GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = k.model
	}
	cb := req.CallbackURL
	if cb == "" {
		cb = k.callbackURL
	}

	body := map[string]any{
		"model":       model,
		"prompt":      req.Prompt,
		"callBackUrl": cb,
	}
	for key, v := range req.Params {
		body[key] = v
	}
	b, _ := json.Marshal(body)

	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, k.base+"/generate", bytes.NewReader(b))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+k.apiKey)

	resp, err := k.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("kling http %d", resp.StatusCode)
	}
	var env klingEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	if env.Code != 200 {
		return nil, fmt.Errorf("kling code %d: %s", env.Code, env.Msg)
	}
	var task klingTask
	if err := json.Unmarshal(env.Data, &task); err != nil {
		return nil, err
	}
	if task.TaskID == "" {
		return nil, errors.New("kling returned no task id")
	}
	if notify != nil {
		notify(adapter.ProgressUpdate{TaskID: task.TaskID, State: "queued"})
	}

	// Poll until terminal; ctx carries the caller's wall-clock budget.
	// A timed-out task may still finish and arrive via callBackUrl.
	ticker := time.NewTicker(k.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return &adapter.GenerateResult{TaskID: task.TaskID}, ctx.Err()
		case <-ticker.C:
		}

		rec, err := k.fetchRecord(ctx, task.TaskID)
		if err != nil {
			if ctx.Err() != nil {
				return &adapter.GenerateResult{TaskID: task.TaskID}, ctx.Err()
			}
			// Transient poll failure, keep waiting.
			continue
		}
		if notify != nil && rec.State != "" {
			notify(adapter.ProgressUpdate{TaskID: task.TaskID, State: rec.State})
		}
		switch rec.State {
		case "success":
			urls, err := ParseResultURLs([]byte(rec.ResultJSON))
			if err != nil || len(urls) == 0 {
				return nil, domain.ErrEmptyResult
			}
			return &adapter.GenerateResult{TaskID: task.TaskID, VideoURL: urls[0], Completed: true}, nil
		case "fail":
			msg := rec.FailMsg
			if msg == "" {
				msg = "generation failed"
			}
			return nil, fmt.Errorf("kling: %s", msg)
		}
		// queued / generating: keep polling
	}
}

func (k *KlingAdapter) fetchRecord(ctx context.Context, taskID string) (*klingTask, error) {
	u := k.base + "/record-info?taskId=" + url.QueryEscape(taskID)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	req.Header.Set("Authorization", "Bearer "+k.apiKey)

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("kling http %d", resp.StatusCode)
	}
	var env klingEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	var task klingTask
	if err := json.Unmarshal(env.Data, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ParseResultURLs extracts the result reference list from a provider result
// payload. Accepts `{"resultUrls": ["..."]}`, a bare JSON array, and either
// shape wrapped in a JSON-encoded string.
func ParseResultURLs(raw []byte) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, domain.ErrEmptyResult
	}
	// A JSON string containing the actual payload.
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		return ParseResultURLs([]byte(inner))
	}
	if raw[0] == '[' {
		var urls []string
		if err := json.Unmarshal(raw, &urls); err != nil {
			return nil, err
		}
		return urls, nil
	}
	var obj struct {
		ResultURLs []string `json:"resultUrls"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj.ResultURLs, nil
}
