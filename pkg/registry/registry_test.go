package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cat := Default()

	assert.Len(t, cat.Expressions, 16)
	assert.Equal(t, []string{"Happy", "Sad", "Angry", "Surprised", "Embarrassed", "Smug"}, cat.DefaultLabels())
	assert.Contains(t, cat.WithTag("POSITIVE"), "Laughing")
}

func TestCatalog_Resolve(t *testing.T) {
	cat := Default()

	got := cat.Resolve([]string{"happy", " SAD ", "Happy", "", "Wistful"})
	assert.Equal(t, []string{"Happy", "Sad", "Wistful"}, got)
}

func TestCatalog_DefaultLabelsFallsBackToAll(t *testing.T) {
	cat, err := Parse([]byte("expressions:\n  - label: a\n  - label: b\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cat.DefaultLabels())
}

func TestLoadCatalog_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
version: "2"
promptTemplate: "chibi {expression} sticker"
expressions:
  - label: Pouting
    default: true
`), 0o644))

	jsonPath := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"version":"3","expressions":[{"label":"Grinning","tags":["positive"]}]}`), 0o644))

	cat, err := LoadCatalog(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "chibi {expression} sticker", cat.PromptTemplate)
	assert.Equal(t, []string{"Pouting"}, cat.DefaultLabels())

	cat, err = LoadCatalog(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "3", cat.Version)
	assert.Equal(t, []string{"Grinning"}, cat.WithTag("positive"))
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":     "version: \"1\"\n",
		"no label":  "expressions:\n  - description: x\n",
		"duplicate": "expressions:\n  - label: Happy\n  - label: happy\n",
		"bad yaml":  "expressions: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
