package dataset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"leaffliction/internal/models"
)

// DefaultExtensions are matched case-insensitively.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif", ".webp"}

// Class is one directory of images. Files holds base names in lexical
// order, captured once at scan time.
type Class struct {
	Label   string
	RelPath string
	Dir     string
	Files   []string
}

func (c Class) Size() int {
	return len(c.Files)
}

func (c Class) Path(file string) string {
	return filepath.Join(c.Dir, file)
}

// Collection is an immutable snapshot of the classes under Root.
type Collection struct {
	Root    string
	Classes []Class
}

func (c *Collection) TotalFiles() int {
	total := 0
	for _, cl := range c.Classes {
		total += cl.Size()
	}
	return total
}

// Matcher decides which file names count as images.
type Matcher struct {
	extensions map[string]struct{}
}

func NewMatcher(extensions []string) Matcher {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	m := Matcher{extensions: make(map[string]struct{}, len(extensions))}
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m.extensions[ext] = struct{}{}
	}
	return m
}

// Match rejects hidden files, which include in-flight temporary outputs.
func (m Matcher) Match(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	_, ok := m.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Scan walks root. A directory is a class when it holds at least one image
// or has no subdirectories.
func Scan(root string, matcher Matcher) (*Collection, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, models.InvalidPath("Scan", root, err)
	}
	if !info.IsDir() {
		return nil, models.InvalidPath("Scan", root, fmt.Errorf("not a directory"))
	}

	collection := &Collection{Root: root}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return models.InvalidPath("Scan", path, walkErr)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		class, ok, err := readClass(root, path, matcher)
		if err != nil {
			return err
		}
		if ok {
			collection.Classes = append(collection.Classes, class)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return collection, nil
}

func readClass(root, dir string, matcher Matcher) (Class, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Class{}, false, models.InvalidPath("Scan", dir, err)
	}

	var files []string
	hasSubdirs := false
	for _, e := range entries {
		if e.IsDir() {
			if !strings.HasPrefix(e.Name(), ".") {
				hasSubdirs = true
			}
			continue
		}
		if matcher.Match(e.Name()) {
			files = append(files, e.Name())
		}
	}

	if len(files) == 0 && hasSubdirs {
		return Class{}, false, nil
	}

	sort.Strings(files)

	rel, err := filepath.Rel(root, dir)
	if err != nil {
		rel = dir
	}

	return Class{
		Label:   filepath.Base(dir),
		RelPath: rel,
		Dir:     dir,
		Files:   files,
	}, true, nil
}
