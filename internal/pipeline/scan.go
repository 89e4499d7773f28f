package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/eventlog"
	"github.com/timmy/zip2text/internal/logger"
)

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// IsSupportedImage matches on the file extension only, case-insensitively.
func IsSupportedImage(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// ImageScanner finds the supported images in a workspace.
type ImageScanner struct{}

// Scan walks workspace recursively and returns the image paths in natural
// order of their workspace-relative path. Hidden entries and macOS resource
// fork folders are skipped like any other non-image.
func (ImageScanner) Scan(ctx context.Context, em *eventlog.Emitter, workspace string) ([]string, error) {
	ctx = logger.SetStage(ctx, "scan")
	em.Info(ctx, domain.EventImageScan, "Scanning extracted files for supported images...", nil)

	var (
		images  []string
		skipped int
	)
	err := filepath.WalkDir(workspace, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == workspace {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if name == "__MACOSX" || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() || !IsSupportedImage(name) {
			skipped++
			return nil
		}
		images = append(images, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan workspace: %w", err)
	}

	sort.SliceStable(images, func(i, j int) bool {
		a, _ := filepath.Rel(workspace, images[i])
		b, _ := filepath.Rel(workspace, images[j])
		return naturalLess(filepath.ToSlash(a), filepath.ToSlash(b))
	})

	for _, path := range images {
		name := filepath.Base(path)
		em.Info(ctx, domain.EventImageScan, "Found image: "+name, eventlog.Data{"filename": name})
	}

	msg := fmt.Sprintf("Scan complete. Found %d supported images.", len(images))
	if skipped > 0 {
		msg += fmt.Sprintf(" Skipped %d other files.", skipped)
	}
	em.Success(ctx, domain.EventImageScan, msg, eventlog.Data{"image_count": len(images), "skipped_count": skipped})
	return images, nil
}

// naturalLess orders strings so that embedded numbers compare by value
// ("page2" < "page10"). Letters compare case-insensitively; exact ties fall
// back to byte order so the result is total.
func naturalLess(a, b string) bool {
	if c := naturalCompare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c < 0
	}
	return a < b
}

func naturalCompare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[si:i], "0")
			nb := strings.TrimLeft(b[sj:j], "0")
			if len(na) != len(nb) {
				return compareInt(len(na), len(nb))
			}
			if na != nb {
				return strings.Compare(na, nb)
			}
			// equal value, fewer leading zeros first
			if c := compareInt(i-si, j-sj); c != 0 {
				return c
			}
			continue
		}
		if a[i] != b[j] {
			return compareInt(int(a[i]), int(b[j]))
		}
		i++
		j++
	}
	return compareInt(len(a)-i, len(b)-j)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
