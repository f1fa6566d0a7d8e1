package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// GenerationClient is the generative backend the content pipeline draws
// from. No latency bound is guaranteed; callers own their timeouts.
type GenerationClient interface {
	GenerateText(ctx context.Context, prompt string, maxTokens int) (string, error)
	GenerateImage(ctx context.Context, prompt string, width, height int) ([]byte, error)
	Healthy(ctx context.Context) error
}

const (
	defaultGenerationBaseURL = "https://api.openai.com"
	defaultTextModel         = "gpt-4o-mini"
	defaultImageModel        = "dall-e-3"
	defaultGenerationTimeout = 2 * time.Minute
)

// GenerationService talks to an OpenAI-compatible API.
type GenerationService struct {
	apiKey     string
	baseURL    string
	textModel  string
	imageModel string
	client     *http.Client
}

// GenerationOption configures the generation client.
type GenerationOption func(*GenerationService)

// WithGenerationBaseURL sets a custom base URL (for testing or proxies).
func WithGenerationBaseURL(url string) GenerationOption {
	return func(s *GenerationService) {
		s.baseURL = url
	}
}

// WithGenerationHTTPClient sets a custom HTTP client.
func WithGenerationHTTPClient(client *http.Client) GenerationOption {
	return func(s *GenerationService) {
		s.client = client
	}
}

// WithGenerationModels overrides the text and image model ids.
func WithGenerationModels(textModel, imageModel string) GenerationOption {
	return func(s *GenerationService) {
		if textModel != "" {
			s.textModel = textModel
		}
		if imageModel != "" {
			s.imageModel = imageModel
		}
	}
}

func NewGenerationService(apiKey string, opts ...GenerationOption) (*GenerationService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("generation api key not set")
	}

	s := &GenerationService{
		apiKey:     apiKey,
		baseURL:    defaultGenerationBaseURL,
		textModel:  defaultTextModel,
		imageModel: defaultImageModel,
		client:     &http.Client{Timeout: defaultGenerationTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_completion_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (s *GenerationService) GenerateText(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     s.textModel,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	raw, err := s.post(ctx, "/v1/chat/completions", body)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *GenerationService) GenerateImage(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	body, err := json.Marshal(imageRequest{
		Model:          s.imageModel,
		Prompt:         prompt,
		N:              1,
		Size:           fmt.Sprintf("%dx%d", width, height),
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	raw, err := s.post(ctx, "/v1/images/generations", body)
	if err != nil {
		return nil, err
	}

	var resp imageResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty image response")
	}
	return base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
}

// Healthy checks the backend is at least plausibly configured.
func (s *GenerationService) Healthy(ctx context.Context) error {
	if len(s.apiKey) < 10 {
		return fmt.Errorf("invalid api key format")
	}
	return nil
}

// post sends the payload with a small bounded retry, honoring Retry-After
// on 429 responses.
func (s *GenerationService) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
			continue
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := time.Duration(attempt+1) * 10 * time.Second
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
					wait = time.Duration(secs) * time.Second
				}
			}
			lastErr = fmt.Errorf("rate limited: %s", resp.Status)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr apiError
			if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
				return nil, fmt.Errorf("api error (%s): %s", apiErr.Error.Type, apiErr.Error.Message)
			}
			return nil, fmt.Errorf("api error (status %d)", resp.StatusCode)
		}

		return raw, nil
	}
	return nil, fmt.Errorf("request failed after retries: %w", lastErr)
}
