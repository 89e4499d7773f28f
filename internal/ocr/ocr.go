// Package ocr provides the text-detection capability used by the pipeline.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotConfigured means a client cannot be built from the current
// configuration (missing credentials, unknown provider, ...).
var ErrNotConfigured = errors.New("ocr: not configured")

// Client detects text in a single image. An empty string with a nil error
// means the image contains no text.
type Client interface {
	DetectText(ctx context.Context, image []byte, format string) (string, error)
	Name() string
}

// Factory builds a Client for one job. Errors are fatal to that job.
type Factory func(ctx context.Context) (Client, error)

// Config selects and configures a provider.
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	Languages []string
	Timeout   time.Duration
}

const (
	ProviderGoogleVision = "google-vision"
	ProviderOpenAI       = "openai"
	ProviderTesseract    = "tesseract"
)

// NewFactory returns a Factory for cfg.Provider. Configuration is validated
// lazily so that a misconfigured worker still reports the problem on each job.
func NewFactory(cfg Config) Factory {
	return func(ctx context.Context) (Client, error) {
		var (
			client Client
			err    error
		)
		switch strings.ToLower(cfg.Provider) {
		case "", ProviderGoogleVision:
			client, err = asClient(NewVisionClient(cfg))
		case ProviderOpenAI:
			client, err = asClient(NewOpenAIClient(cfg))
		case ProviderTesseract:
			client, err = NewTesseractClient(cfg)
		default:
			err = fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, cfg.Provider)
		}
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func asClient[C Client](c C, err error) (Client, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}

// MIMEType maps an image extension (without dot) to its content type.
func MIMEType(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 60 * time.Second
	}
	return d
}
