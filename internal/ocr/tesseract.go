//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractClient runs OCR locally through libtesseract.
type TesseractClient struct {
	languages []string
}

// NewTesseractClient checks that the tesseract library can be loaded.
func NewTesseractClient(cfg Config) (Client, error) {
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"eng"}
	}

	probe := gosseract.NewClient()
	defer probe.Close()
	if err := probe.SetLanguage(langs...); err != nil {
		return nil, fmt.Errorf("%w: tesseract languages %v: %v", ErrNotConfigured, langs, err)
	}
	return &TesseractClient{languages: langs}, nil
}

func (c *TesseractClient) Name() string {
	return ProviderTesseract
}

// DetectText runs tesseract on the image bytes. gosseract clients are not
// safe for concurrent use, so each call gets its own.
func (c *TesseractClient) DetectText(ctx context.Context, image []byte, format string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(c.languages...); err != nil {
		return "", fmt.Errorf("failed to set tesseract language: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}
