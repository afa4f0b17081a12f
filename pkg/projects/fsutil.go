package projects

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/omlboard/omlboard/pkg/consolidate"
	"github.com/omlboard/omlboard/pkg/workspace"
)

// FolderName derives the on-disk folder segment from a project name
// and validates it against the path allow-list.
func FolderName(name string) (string, error) {
	segment := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))

	err := workspace.SanitizeName(segment)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}

	return segment, nil
}

// CopyArtifacts copies every regular file from srcDir into dstDir.
func CopyArtifacts(srcDir, dstDir string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return fmt.Errorf("failed to read artifact directory %s: %w", srcDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		err = copyFile(filepath.Join(srcDir, entry.Name()), filepath.Join(dstDir, entry.Name()))
		if err != nil {
			return err
		}
	}

	return nil
}

// MaterializeCSVs renders a CSV next to every JSON dataset in dir.
// Datasets that cannot be rendered row-wise are left as JSON only.
func MaterializeCSVs(dir string, logger *slog.Logger) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return
	}

	for _, jsonPath := range matches {
		csvPath := strings.TrimSuffix(jsonPath, ".json") + ".csv"

		err = consolidate.MaterializeCSV(jsonPath, csvPath)
		if err != nil {
			logger.Debug("Dataset not materialized as CSV", "path", jsonPath, "reason", err)
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	if err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}

	return nil
}
