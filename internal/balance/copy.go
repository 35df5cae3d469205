package balance

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"leaffliction/internal/models"
	"leaffliction/internal/pipeline"
)

// escapes reports whether a relative path leaves its base directory.
// A name that merely starts with two dots, like "..cache", does not.
func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// CopyTree mirrors src into dst so balancing never touches the source
// corpus. Existing destination directories are reused; hidden entries are
// skipped.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return models.InvalidPath("CopyTree", src, err)
	}
	if !info.IsDir() {
		return models.InvalidPath("CopyTree", src, fmt.Errorf("not a directory"))
	}

	absSrc, err := filepath.Abs(src)
	if err != nil {
		return models.InvalidPath("CopyTree", src, err)
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return models.InvalidPath("CopyTree", dst, err)
	}
	if rel, err := filepath.Rel(absSrc, absDst); err == nil && !escapes(rel) {
		return models.InvalidPath("CopyTree", dst, fmt.Errorf("destination is inside source %s", src))
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return models.InvalidPath("CopyTree", path, walkErr)
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return models.InvalidPath("CopyTree", path, err)
		}
		if rel != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return models.WriteFailure("CopyTree", target, err)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return CopyFile(path, target)
	})
}

// CopyFile copies src to dst through a hidden temporary file.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return models.InvalidPath("CopyFile", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return models.WriteFailure("CopyFile", dst, err)
	}

	tmp := pipeline.PartialName(dst)
	out, err := os.Create(tmp)
	if err != nil {
		return models.WriteFailure("CopyFile", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return models.WriteFailure("CopyFile", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return models.WriteFailure("CopyFile", dst, err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return models.WriteFailure("CopyFile", dst, err)
	}
	return nil
}
