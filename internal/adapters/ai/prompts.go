package ai

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"github.com/selivandex/thesis-engine/pkg/templates"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

const (
	thesisSystemTemplate = "thesis_system.tmpl"
	thesisUserTemplate   = "thesis.tmpl"
)

// ThesisPromptData is the template input for a thesis request
type ThesisPromptData struct {
	Ticker         string
	IndicatorsJSON string
	Headlines      []string
	Evidences      []string
}

// PromptBuilder renders thesis prompts from templates
type PromptBuilder struct {
	renderer templates.Renderer
}

// NewPromptBuilder loads the built-in templates, or templates from dir when set
func NewPromptBuilder(dir string) (*PromptBuilder, error) {
	var (
		m   *templates.Manager
		err error
	)
	if dir != "" {
		m, err = templates.NewManager(dir)
		if err == nil {
			err = m.Require(thesisSystemTemplate, thesisUserTemplate)
		}
	} else {
		sub, subErr := fs.Sub(promptFS, "prompts")
		if subErr != nil {
			return nil, subErr
		}
		m, err = templates.NewManagerWithValidation(sub, []string{thesisSystemTemplate, thesisUserTemplate})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	return &PromptBuilder{renderer: m}, nil
}

// BuildThesisPrompt renders the system and user prompt
func (b *PromptBuilder) BuildThesisPrompt(data ThesisPromptData) (Prompt, error) {
	system, err := b.renderer.ExecuteTemplate(thesisSystemTemplate, data)
	if err != nil {
		return Prompt{}, err
	}
	user, err := b.renderer.ExecuteTemplate(thesisUserTemplate, data)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: strings.TrimSpace(system), User: strings.TrimSpace(user)}, nil
}

var fencedJSON = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ExtractJSON strips markdown fences and surrounding prose from model output
func ExtractJSON(text string) string {
	if matches := fencedJSON.FindStringSubmatch(text); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")

	var start int
	var endChar string

	// Determine which comes first: object or array
	if startObj >= 0 && (startArr < 0 || startObj < startArr) {
		start = startObj
		endChar = "}"
	} else if startArr >= 0 {
		start = startArr
		endChar = "]"
	} else {
		return strings.TrimSpace(text)
	}

	end := strings.LastIndex(text, endChar)
	if end > start {
		return strings.TrimSpace(text[start : end+1])
	}

	return strings.TrimSpace(text)
}
