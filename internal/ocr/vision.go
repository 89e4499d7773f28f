package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const defaultVisionURL = "https://vision.googleapis.com/v1"

// VisionClient calls the Cloud Vision images:annotate REST endpoint with
// DOCUMENT_TEXT_DETECTION.
type VisionClient struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

// NewVisionClient requires an API key.
func NewVisionClient(cfg Config) (*VisionClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: Google Vision API key is not set", ErrNotConfigured)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultVisionURL
	}

	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeoutOrDefault(cfg.Timeout))

	return &VisionClient{
		client:   client,
		endpoint: baseURL + "/images:annotate",
		apiKey:   cfg.APIKey,
	}, nil
}

func (c *VisionClient) Name() string {
	return ProviderGoogleVision
}

type visionRequest struct {
	Requests []visionImageRequest `json:"requests"`
}

type visionImageRequest struct {
	Image    visionImage     `json:"image"`
	Features []visionFeature `json:"features"`
}

type visionImage struct {
	Content string `json:"content"`
}

type visionFeature struct {
	Type string `json:"type"`
}

type visionStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type visionResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		Error *visionStatus `json:"error"`
	} `json:"responses"`
	Error *visionStatus `json:"error"`
}

// DetectText sends one image and returns the full text annotation.
func (c *VisionClient) DetectText(ctx context.Context, image []byte, format string) (string, error) {
	req := visionRequest{
		Requests: []visionImageRequest{{
			Image:    visionImage{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []visionFeature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}

	var resp visionResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call Vision API: %w", err)
	}

	if httpResp.IsError() {
		if resp.Error != nil && resp.Error.Message != "" {
			return "", fmt.Errorf("Vision API returned HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return "", fmt.Errorf("Vision API returned HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}
	if len(resp.Responses) == 0 {
		return "", fmt.Errorf("Vision API returned no responses")
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return "", fmt.Errorf("Vision API error: %s", r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		return "", nil
	}
	return r.FullTextAnnotation.Text, nil
}
