package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Entry is one manifest file found on disk.
type Entry struct {
	Tool    string `json:"tool"`
	Command string `json:"command"`
	Path    string `json:"path"`
}

// Catalog lists the manifests available under a root directory.
type Catalog struct {
	dir string
}

// NewCatalog creates a catalog for dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Entries returns every manifest whose "tool/command" matches pattern,
// sorted by tool then command. An empty pattern matches everything.
// Matching is case-insensitive.
func (c *Catalog) Entries(pattern string) ([]Entry, error) {
	var g glob.Glob
	if pattern != "" {
		var err error
		g, err = glob.Compile(strings.ToLower(pattern), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}

	tools, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: directory %s does not exist", ErrNotFound, c.dir)
		}
		return nil, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	var out []Entry
	for _, t := range tools {
		if !t.IsDir() || strings.HasPrefix(t.Name(), ".") {
			continue
		}
		files, err := os.ReadDir(filepath.Join(c.dir, t.Name()))
		if err != nil {
			log.Warn("Failed to read %s: %v", t.Name(), err)
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
				continue
			}
			e := Entry{
				Tool:    t.Name(),
				Command: strings.TrimSuffix(f.Name(), ".yaml"),
				Path:    filepath.Join(c.dir, t.Name(), f.Name()),
			}
			if g != nil && !g.Match(strings.ToLower(e.Tool+"/"+e.Command)) {
				continue
			}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tool != out[j].Tool {
			return out[i].Tool < out[j].Tool
		}
		return out[i].Command < out[j].Command
	})
	return out, nil
}

// List groups matching entries as tool -> commands.
func (c *Catalog) List(pattern string) (map[string][]string, error) {
	entries, err := c.Entries(pattern)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, e := range entries {
		out[e.Tool] = append(out[e.Tool], e.Command)
	}
	return out, nil
}
