package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/zip2text/internal/prompts"
)

// OpenAIClient extracts text with an OpenAI-compatible vision chat model.
type OpenAIClient struct {
	client   *resty.Client
	model    string
	endpoint string
}

// NewOpenAIClient requires an API key and a model.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is not set", ErrNotConfigured)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: OpenAI model is not set", ErrNotConfigured)
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeoutOrDefault(cfg.Timeout))

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &OpenAIClient{
		client:   client,
		model:    cfg.Model,
		endpoint: baseURL + "/chat/completions",
	}, nil
}

func (c *OpenAIClient) Name() string {
	return ProviderOpenAI
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []interface{} for user with images
}

type chatTextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatImagePart struct {
	Type     string       `json:"type"`
	ImageURL chatImageURL `json:"image_url"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// DetectText asks the model to transcribe the image verbatim.
func (c *OpenAIClient) DetectText(ctx context.Context, image []byte, format string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", MIMEType(format), base64.StdEncoding.EncodeToString(image))

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompts.OCRSystemPrompt},
			{
				Role: "user",
				Content: []interface{}{
					chatTextPart{Type: "text", Text: prompts.OCRUserPrompt},
					chatImagePart{Type: "image_url", ImageURL: chatImageURL{URL: dataURL, Detail: "high"}},
				},
			},
		},
		MaxTokens: 4096,
	}

	var resp chatResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call OCR model: %w", err)
	}

	if httpResp.IsError() {
		if resp.Error != nil {
			return "", fmt.Errorf("OCR model returned HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return "", fmt.Errorf("OCR model returned HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}
	if resp.Error != nil {
		return "", fmt.Errorf("OCR model error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in OCR model response (status: %d)", httpResp.StatusCode())
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == prompts.OCRNoTextMarker {
		return "", nil
	}
	return text, nil
}
