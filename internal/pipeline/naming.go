package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// OutputName returns <dir>/<stem>_<label><ext> for source path.
func OutputName(path, label string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + label + ext
}

// NumberedName returns <dir>/<stem>_<label>_<k><ext>.
func NumberedName(path, label string, k int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%s_%d%s", strings.TrimSuffix(path, ext), label, k, ext)
}

// WithExtension replaces the extension of path. ext may omit the dot.
func WithExtension(path, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// PartialName is the hidden temporary name used while path is written.
// The extension is kept so the encoder can be chosen from it.
func PartialName(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".partial"+ext)
}

// IsPartialName reports whether name is a temporary produced by PartialName.
func IsPartialName(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") &&
		strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), ".partial")
}

// RemovePartials deletes temporaries left under root by interrupted writes
// and returns how many were removed. A missing root is not an error.
func RemovePartials(root string) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !IsPartialName(d.Name()) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}
