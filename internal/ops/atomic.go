package ops

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/haiilab/sketchlab/internal/errors"
)

// countingWriter tracks bytes written.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// writeAtomic writes to a temp file beside path and renames it into place,
// so a failed export never clobbers an existing file. It returns the number
// of bytes written.
func writeAtomic(path string, write func(w io.Writer) error) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	cw := &countingWriter{w: file}
	if err := write(cw); err != nil {
		if _, ok := err.(*errors.SketchError); ok {
			return 0, err
		}
		return 0, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return 0, errors.NewInternal(err)
	}

	// Windows cannot rename an open file.
	if err := file.Close(); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return 0, errors.NewInvalidRequest("export path is a symlink")
	}

	// On Windows the rename fails when the destination exists; the existing
	// file is kept rather than risking a delete-then-rename.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return 0, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return 0, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return cw.n, nil
}

// defaultExportPath builds ~/.sketchlab/exports/<stem>-<timestamp><ext>.
func defaultExportPath(stem, ext string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s-%s%s", SanitizeForFilename(stem), now.Format("2006-01-02T150405"), ext)
	return filepath.Join(dir, filename), nil
}
