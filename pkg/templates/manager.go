package templates

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/pkg/logger"
)

// Renderer interface for template rendering (for dependency injection)
type Renderer interface {
	ExecuteTemplate(name string, data any) (string, error)
	TemplateExists(name string) bool
}

// Manager manages a named set of templates
type Manager struct {
	templates *template.Template
	source    string
}

// GetDefaultFuncMap returns common template helper functions
func GetDefaultFuncMap() template.FuncMap {
	return template.FuncMap{
		"pct": func(v float64) string {
			return fmt.Sprintf("%.2f%%", v*100)
		},
		"num": func(v float64) string {
			return fmt.Sprintf("%.4f", v)
		},
		"add":   func(a, b int) int { return a + b },
		"join":  strings.Join,
		"upper": strings.ToUpper,
	}
}

// searchPatterns covers templates at the root and up to two directories deep
var searchPatterns = []string{"*.tmpl", "*/*.tmpl", "*/*/*.tmpl"}

// NewManager loads all templates from a directory on disk
func NewManager(templatesDir string) (*Manager, error) {
	return newManager(os.DirFS(templatesDir), templatesDir)
}

// NewManagerFS loads all templates from fsys, e.g. an embed.FS
func NewManagerFS(fsys fs.FS) (*Manager, error) {
	return newManager(fsys, "embedded")
}

func newManager(fsys fs.FS, source string) (*Manager, error) {
	tmpl := template.New("root").Funcs(GetDefaultFuncMap())

	for _, pattern := range searchPatterns {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil || len(matches) == 0 {
			continue
		}
		// each file is registered under its base name
		if tmpl, err = tmpl.ParseFS(fsys, pattern); err != nil {
			return nil, fmt.Errorf("failed to parse templates %s: %w", pattern, err)
		}
	}

	templateCount := len(tmpl.Templates())
	if templateCount == 0 {
		return nil, fmt.Errorf("no templates found in %s or subdirectories", source)
	}

	logger.Debug("templates loaded",
		zap.Int("count", templateCount),
		zap.String("source", source),
	)

	return &Manager{
		templates: tmpl,
		source:    source,
	}, nil
}

// NewManagerWithValidation creates manager from fsys and validates required templates exist
func NewManagerWithValidation(fsys fs.FS, requiredTemplates []string) (*Manager, error) {
	manager, err := NewManagerFS(fsys)
	if err != nil {
		return nil, err
	}
	if err := manager.Require(requiredTemplates...); err != nil {
		return nil, err
	}
	return manager, nil
}

// Require returns an error naming the first missing template
func (m *Manager) Require(names ...string) error {
	for _, name := range names {
		if m.templates.Lookup(name) == nil {
			return fmt.Errorf("required template not found: %s", name)
		}
	}
	return nil
}

// ExecuteTemplate renders template with data
func (m *Manager) ExecuteTemplate(name string, data any) (string, error) {
	tmpl := m.templates.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}

// TemplateExists checks if template exists
func (m *Manager) TemplateExists(name string) bool {
	return m.templates.Lookup(name) != nil
}

// Source returns where templates were loaded from
func (m *Manager) Source() string {
	return m.source
}
