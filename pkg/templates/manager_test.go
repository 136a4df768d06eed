package templates

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerFS(t *testing.T) {
	fsys := fstest.MapFS{
		"hello.tmpl":        {Data: []byte(`Hello {{ upper .Name }} {{ pct .Change }}`)},
		"nested/item.tmpl":  {Data: []byte(`{{ range $i, $v := .Items }}{{ add $i 1 }}. {{ $v }}\n{{ end }}`)},
		"nested/README.txt": {Data: []byte(`ignored`)},
	}

	m, err := NewManagerFS(fsys)
	require.NoError(t, err)
	assert.True(t, m.TemplateExists("hello.tmpl"))
	assert.True(t, m.TemplateExists("item.tmpl"))
	assert.False(t, m.TemplateExists("README.txt"))

	out, err := m.ExecuteTemplate("hello.tmpl", map[string]any{"Name": "aapl", "Change": 0.0123})
	require.NoError(t, err)
	assert.Equal(t, "Hello AAPL 1.23%", out)

	_, err = m.ExecuteTemplate("missing.tmpl", nil)
	assert.Error(t, err)
}

func TestNewManagerWithValidation(t *testing.T) {
	fsys := fstest.MapFS{"a.tmpl": {Data: []byte(`a`)}}

	_, err := NewManagerWithValidation(fsys, []string{"a.tmpl"})
	require.NoError(t, err)

	_, err = NewManagerWithValidation(fsys, []string{"a.tmpl", "b.tmpl"})
	assert.ErrorContains(t, err, "b.tmpl")
}

func TestNewManager_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.tmpl"), []byte(`{{ num .V }}`), 0o644))

	m, err := NewManager(dir)
	require.NoError(t, err)
	out, err := m.ExecuteTemplate("x.tmpl", map[string]float64{"V": 1.5})
	require.NoError(t, err)
	assert.Equal(t, "1.5000", out)

	_, err = NewManager(t.TempDir())
	assert.Error(t, err, "empty directory has no templates")
}
