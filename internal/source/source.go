// Package source reads metadata documents from the filesystem.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/metaddl/internal/loader"
)

var extensions = []string{".json", ".yaml", ".yml"}

// Extensions lists the file extensions picked up from directories
func Extensions() []string {
	return append([]string(nil), extensions...)
}

// ReadPaths decodes every file named by paths. Directories are expanded to
// their metadata files, sorted by name; files given explicitly are read
// whatever their extension. A path reached twice is read once.
func ReadPaths(paths []string) ([]loader.Document, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no metadata paths given")
	}

	var files []string
	seen := make(map[string]bool)
	for _, p := range paths {
		expanded, err := expand(p)
		if err != nil {
			return nil, err
		}
		for _, f := range expanded {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}

	docs := make([]loader.Document, 0, len(files))
	for _, f := range files {
		doc, err := ReadFile(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ReadFile decodes one JSON or YAML document
func ReadFile(path string) (loader.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return loader.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(path, data)
}

// Decode parses document content. YAML is a superset of JSON, so one decoder
// serves both formats.
func Decode(name string, data []byte) (loader.Document, error) {
	var content map[string]any
	if err := yaml.Unmarshal(data, &content); err != nil {
		return loader.Document{}, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if content == nil {
		content = map[string]any{}
	}
	return loader.Document{Name: name, Content: content}, nil
}

func expand(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{filepath.Clean(path)}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !hasMetadataExtension(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func hasMetadataExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range extensions {
		if ext == want {
			return true
		}
	}
	return false
}
