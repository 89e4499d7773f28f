package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// OcrOutcome is the result of running OCR on one image.
type OcrOutcome struct {
	Path string
	Text string
	Err  error
}

// Failed reports whether the image could not be processed.
func (o OcrOutcome) Failed() bool {
	return o.Err != nil
}

// Content returns the trimmed text, or an error placeholder for failures.
func (o OcrOutcome) Content() string {
	if o.Err != nil {
		return fmt.Sprintf("[Error processing %s: %v]", filepath.Base(o.Path), o.Err)
	}
	return strings.TrimSpace(o.Text)
}

// OcrResultMap maps image path to its outcome.
type OcrResultMap map[string]OcrOutcome

// FailedCount returns the number of failed outcomes.
func (m OcrResultMap) FailedCount() int {
	n := 0
	for _, o := range m {
		if o.Failed() {
			n++
		}
	}
	return n
}
