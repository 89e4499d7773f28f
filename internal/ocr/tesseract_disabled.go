//go:build !tesseract

package ocr

import "fmt"

// NewTesseractClient reports that this binary was built without the
// tesseract build tag.
func NewTesseractClient(cfg Config) (Client, error) {
	return nil, fmt.Errorf("%w: binary built without tesseract support (rebuild with -tags tesseract)", ErrNotConfigured)
}
