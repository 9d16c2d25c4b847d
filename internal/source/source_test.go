package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadPathsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", "tables:\n  - name: b\n")
	writeFile(t, dir, "a.json", `{"tables": [{"name": "a"}]}`)
	writeFile(t, dir, "c.yml", "tables: []\n")
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	docs, err := ReadPaths([]string{dir})
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, filepath.Join(dir, "a.json"), docs[0].Name)
	assert.Equal(t, filepath.Join(dir, "b.yaml"), docs[1].Name)
	assert.Equal(t, filepath.Join(dir, "c.yml"), docs[2].Name)

	tables, ok := docs[0].Content["tables"].([]any)
	require.True(t, ok)
	first, ok := tables[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a", first["name"])
}

func TestReadPathsExplicitFileAndDedup(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schema.meta", "namespace: sales\ntables: []\n")

	docs, err := ReadPaths([]string{path, path})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "sales", docs[0].Content["namespace"])
}

func TestReadPathsErrors(t *testing.T) {
	_, err := ReadPaths(nil)
	assert.Error(t, err)

	_, err = ReadPaths([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "tables: [unterminated\n")
	_, err = ReadPaths([]string{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestDecodeEmptyDocument(t *testing.T) {
	doc, err := Decode("empty.yaml", nil)
	require.NoError(t, err)
	assert.NotNil(t, doc.Content)
	assert.Empty(t, doc.Content)
}

func TestDecodeTypedScalars(t *testing.T) {
	doc, err := Decode("x.yaml", []byte("tables:\n  - name: t\n    fields:\n      - {name: n, type: integer, default: 3, nullable: false}\n"))
	require.NoError(t, err)

	tables := doc.Content["tables"].([]any)
	fields := tables[0].(map[string]any)["fields"].([]any)
	field := fields[0].(map[string]any)
	assert.Equal(t, 3, field["default"])
	assert.Equal(t, false, field["nullable"])
}

func TestExtensionsReturnsCopy(t *testing.T) {
	exts := Extensions()
	assert.Equal(t, []string{".json", ".yaml", ".yml"}, exts)

	exts[0] = ".txt"
	assert.Equal(t, ".json", Extensions()[0])
}
