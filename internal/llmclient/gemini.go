// Package llmclient implements the structured-text-generation
// collaborator. Retry, backoff, pacing, and output parsing all live
// here; agents only see Complete/CompleteJSON and IsAvailable.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/config"
)

// GeminiClient talks to the Gemini generateContent API over HTTP.
type GeminiClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        config.LLMConfig
	logger     *zap.Logger
}

var _ schemas.LLMClient = (*GeminiClient)(nil)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGeminiClient builds a client from config. An empty API key is allowed;
// the client then reports unavailable and agents take their deterministic
// fallback paths.
func NewGeminiClient(cfg config.LLMConfig, logger *zap.Logger) *GeminiClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf(
			"https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 15
	}

	return &GeminiClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		logger:     logger.Named("llmclient.gemini"),
	}
}

// IsAvailable reports whether credentials are configured.
func (c *GeminiClient) IsAvailable() bool { return c.apiKey != "" }

// Complete sends the prompt and returns the generated text, retrying
// transient failures with exponential backoff.
func (c *GeminiClient) Complete(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if !c.IsAvailable() {
		return "", fmt.Errorf("gemini client is not configured with an API key")
	}

	payload := c.buildRequest(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.MaxRetryElapsed

	var text string
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn("Network error during generation request, retrying", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.classifyAPIError(resp.StatusCode, respBody)
		}

		var parsed geminiResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return backoff.Permanent(fmt.Errorf("generation API returned no candidates"))
		}

		text = parsed.Candidates[0].Content.Parts[0].Text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return text, nil
}

// CompleteJSON completes the prompt and parses the result as a JSON
// object, tolerating markdown code fences and trailing prose.
func (c *GeminiClient) CompleteJSON(ctx context.Context, req schemas.GenerationRequest) (map[string]any, error) {
	if !containsJSONHint(req.Prompt) {
		req.Prompt += "\n\nRespond strictly in valid JSON format."
	}
	text, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return ParseJSONResponse(text), nil
}

func (c *GeminiClient) buildRequest(req schemas.GenerationRequest) geminiRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	out := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	if req.System != "" {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	return out
}

// classifyAPIError decides which HTTP failures are worth retrying.
// Rate limits and server errors retry; client errors are permanent.
func (c *GeminiClient) classifyAPIError(status int, body []byte) error {
	var parsed geminiResponse
	msg := string(body)
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
		msg = parsed.Error.Message
	}

	err := fmt.Errorf("generation API returned status %d: %s", status, msg)
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		c.logger.Warn("Retryable API error", zap.Int("status", status))
		return err
	}
	return backoff.Permanent(err)
}
