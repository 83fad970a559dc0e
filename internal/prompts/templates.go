package prompts

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"comfy-studio/server/internal/workflow"
)

// TemplateEngine manages the assistant's prompt templates
type TemplateEngine struct {
	templates map[string]*Template
	mu        sync.RWMutex
}

// Template represents a prompt template with variables
type Template struct {
	Name        string   `json:"name"`
	Content     string   `json:"content"`
	Variables   []string `json:"variables"`
	Description string   `json:"description"`
}

// SuggestContext holds variables for drafting a new image prompt
type SuggestContext struct {
	Question     string `json:"question"`
	KindContext  string `json:"kind_context"`
	Conversation string `json:"conversation"`
}

// RefineContext holds variables for improving an existing prompt
type RefineContext struct {
	LastPrompt  string `json:"last_prompt"`
	Feedback    string `json:"feedback"`
	KindContext string `json:"kind_context"`
}

// NewTemplateEngine creates a template engine with the default templates
// registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerDefaults()
	return e
}

// RegisterTemplate registers a template, replacing any previous one with
// the same name.
func (e *TemplateEngine) RegisterTemplate(tmpl *Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[tmpl.Name] = tmpl
}

// GetTemplate retrieves a template by name
func (e *TemplateEngine) GetTemplate(name string) (*Template, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tmpl, ok := e.templates[name]
	if !ok {
		return nil, fmt.Errorf("template not found: %s", name)
	}
	return tmpl, nil
}

// RenderSuggest renders the prompt-drafting template.
func (e *TemplateEngine) RenderSuggest(ctx *SuggestContext) (string, error) {
	return e.render("suggest", map[string]string{
		"question":     ctx.Question,
		"kind_context": ctx.KindContext,
		"conversation": ctx.Conversation,
	})
}

// RenderRefine renders the prompt-refinement template.
func (e *TemplateEngine) RenderRefine(ctx *RefineContext) (string, error) {
	return e.render("refine", map[string]string{
		"last_prompt":  ctx.LastPrompt,
		"feedback":     ctx.Feedback,
		"kind_context": ctx.KindContext,
	})
}

var varRegex = regexp.MustCompile(`\{\{(\w+)\}\}`)

func (e *TemplateEngine) render(templateName string, vars map[string]string) (string, error) {
	tmpl, err := e.GetTemplate(templateName)
	if err != nil {
		return "", err
	}

	result := varRegex.ReplaceAllStringFunc(tmpl.Content, func(match string) string {
		name := varRegex.FindStringSubmatch(match)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match // Keep placeholder if not found
	})
	return strings.TrimSpace(result), nil
}

// KindContext describes a workflow kind to the assistant so its drafts fit
// what the workflow actually consumes.
func KindContext(kind workflow.Kind) string {
	switch kind {
	case workflow.KindImageVariation:
		return "The prompt steers a variation of an existing image; describe desired changes, not the whole scene."
	case workflow.KindSketchToImage:
		return "The prompt accompanies a rough sketch that fixes the composition; describe subject, materials and lighting."
	case workflow.KindInpainting:
		return "The prompt describes only what should fill the masked region of an existing image."
	case workflow.KindThreeDGen:
		return "The prompt is unused for 3D generation; the source image alone drives the result."
	case workflow.KindCanvasSketch:
		return "The prompt accompanies a canvas drawing that fixes the composition; describe subject, style and palette."
	default:
		return "The prompt fully describes the image to generate: subject, setting, style, lighting, quality tags."
	}
}

func (e *TemplateEngine) registerDefaults() {
	e.RegisterTemplate(&Template{
		Name: "suggest",
		Content: `You are an assistant specialized in writing prompts for image generation AI.
Context: {{kind_context}}
{{conversation}}User: {{question}}
Reply with a single detailed image generation prompt.`,
		Variables:   []string{"kind_context", "conversation", "question"},
		Description: "Drafts a positive prompt from a user question",
	})

	e.RegisterTemplate(&Template{
		Name: "refine",
		Content: `You are an assistant that improves image generation prompts.
Last prompt: "{{last_prompt}}"
User feedback: "{{feedback}}"
Context: "{{kind_context}}"
Produce an improved version as JSON: {"positive": "improved positive prompt", "negative": "improved negative prompt"}`,
		Variables:   []string{"last_prompt", "feedback", "kind_context"},
		Description: "Rewrites a prompt pair from user feedback",
	})
}
