package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/eventlog"
	"github.com/timmy/zip2text/internal/logger"
)

const workspacePrefix = "zip2text_"

// ExtractLimits bounds what a single archive may expand to. Zero disables a
// limit.
type ExtractLimits struct {
	MaxEntries    int
	MaxTotalBytes int64
}

// ZipExtractor validates an uploaded archive and unpacks it into a fresh
// workspace directory.
type ZipExtractor struct {
	workspaceRoot string
	limits        ExtractLimits
}

// NewZipExtractor creates workspaces under root, or the system temp dir when
// root is empty.
func NewZipExtractor(root string, limits ExtractLimits) *ZipExtractor {
	return &ZipExtractor{workspaceRoot: root, limits: limits}
}

// Extract returns the workspace path. On any error nothing is left on disk.
func (x *ZipExtractor) Extract(ctx context.Context, em *eventlog.Emitter, zipPath string) (string, error) {
	ctx = logger.SetStage(ctx, "extract")

	em.Info(ctx, domain.EventValidation, "Validating uploaded file...", nil)
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		if r != nil {
			r.Close()
		}
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			em.Error(ctx, domain.EventValidation, "Uploaded file could not be read.", nil)
			return "", fmt.Errorf("failed to open uploaded archive: %w", err)
		}
		em.Error(ctx, domain.EventValidation, "File is not a valid ZIP archive.", nil)
		return "", invalidArchive("Uploaded file is not a valid ZIP archive.", err)
	}
	defer r.Close()
	em.Success(ctx, domain.EventValidation, "File validation successful.", nil)

	if x.limits.MaxEntries > 0 && len(r.File) > x.limits.MaxEntries {
		em.Error(ctx, domain.EventExtraction, "Archive contains too many entries.", eventlog.Data{"entries": len(r.File)})
		return "", invalidArchive(fmt.Sprintf("Archive has %d entries, the limit is %d.", len(r.File), x.limits.MaxEntries), nil)
	}

	if x.workspaceRoot != "" {
		if err := os.MkdirAll(x.workspaceRoot, 0755); err != nil {
			em.Error(ctx, domain.EventExtraction, "Could not create a temporary workspace.", nil)
			return "", fmt.Errorf("%w: %v", ErrWorkspace, err)
		}
	}
	workspace, err := os.MkdirTemp(x.workspaceRoot, workspacePrefix)
	if err != nil {
		em.Error(ctx, domain.EventExtraction, "Could not create a temporary workspace.", nil)
		return "", fmt.Errorf("%w: %v", ErrWorkspace, err)
	}

	em.Info(ctx, domain.EventExtraction, "Starting extraction to temporary directory...", nil)
	if err := x.extractAll(ctx, em, r.File, workspace); err != nil {
		if rmErr := os.RemoveAll(workspace); rmErr != nil {
			logger.FromContext(ctx).WithError(rmErr).Errorf("Failed to remove workspace %s", workspace)
		}
		var ae *archiveError
		if errors.As(err, &ae) {
			em.Error(ctx, domain.EventExtraction, ae.reason, nil)
		} else {
			em.Error(ctx, domain.EventExtraction, "An unexpected error occurred during extraction.", nil)
		}
		return "", err
	}

	em.Success(ctx, domain.EventExtraction, fmt.Sprintf("Extraction complete. Extracted %d items.", len(r.File)),
		eventlog.Data{"item_count": len(r.File)})
	logger.With(logger.Fields{"workspace": workspace}).WithCount(len(r.File)).Info(ctx, "Archive extracted")
	return workspace, nil
}

func (x *ZipExtractor) extractAll(ctx context.Context, em *eventlog.Emitter, files []*zip.File, workspace string) error {
	var written int64
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := filepath.FromSlash(strings.TrimSuffix(f.Name, "/"))
		if name == "" || !filepath.IsLocal(name) {
			return invalidArchive(fmt.Sprintf("Archive entry %q escapes the extraction directory.", f.Name), nil)
		}
		target := filepath.Join(workspace, name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", f.Name, err)
			}
		} else {
			n, err := x.extractFile(f, target, written)
			if err != nil {
				return err
			}
			written += n
		}

		em.Info(ctx, domain.EventExtraction, "Extracted: "+f.Name, eventlog.Data{"filename": f.Name})
	}
	return nil
}

// extractFile writes one entry as a regular file, whatever its mode says, so
// symlinks in the archive never become links on disk.
func (x *ZipExtractor) extractFile(f *zip.File, target string, alreadyWritten int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return 0, corruptOr(err, f.Name)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", f.Name, err)
	}
	defer out.Close()

	var src io.Reader = rc
	budget := int64(-1)
	if x.limits.MaxTotalBytes > 0 {
		budget = x.limits.MaxTotalBytes - alreadyWritten
		src = io.LimitReader(rc, budget+1)
	}

	n, err := io.Copy(out, src)
	if err != nil {
		return n, corruptOr(err, f.Name)
	}
	if budget >= 0 && n > budget {
		return n, invalidArchive(fmt.Sprintf("Archive expands beyond the %d byte limit.", x.limits.MaxTotalBytes), nil)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("failed to write %s: %w", f.Name, err)
	}
	return n, nil
}

func corruptOr(err error, name string) error {
	if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrAlgorithm) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return invalidArchive("File is a corrupt ZIP archive.", fmt.Errorf("%s: %w", name, err))
	}
	return fmt.Errorf("failed to extract %s: %w", name, err)
}
