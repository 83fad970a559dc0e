package prompter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"

	"comfy-studio/server/internal/prompts"
	"comfy-studio/server/internal/workflow"
)

const (
	// DefaultBaseURL targets a local Ollama instance through its
	// OpenAI-compatible endpoint.
	DefaultBaseURL = "http://127.0.0.1:11434/v1"

	defaultSuggestModel = "mistral"
	defaultRefineModel  = "llama3"
)

// Message is one turn of the assistant conversation kept by the browser.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Refinement is an improved positive/negative prompt pair.
type Refinement struct {
	Positive string `json:"positive"`
	Negative string `json:"negative"`
}

// chatCompleter is the slice of the OpenAI client the assistant needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Assistant wraps a local LLM behind the OpenAI chat API to draft and
// refine generation prompts. It never touches the generation pipeline;
// its failures surface as plain error strings in the chat panel.
type Assistant struct {
	client       chatCompleter
	templates    *prompts.TemplateEngine
	suggestModel string
	refineModel  string
}

// NewAssistant creates an assistant against the LLM at baseURL. Empty
// arguments fall back to the local Ollama defaults.
func NewAssistant(baseURL, suggestModel, refineModel string) *Assistant {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if suggestModel == "" {
		suggestModel = defaultSuggestModel
	}
	if refineModel == "" {
		refineModel = defaultRefineModel
	}

	// Ollama ignores the key but the client requires one.
	config := openai.DefaultConfig("ollama")
	config.BaseURL = baseURL

	return &Assistant{
		client:       openai.NewClientWithConfig(config),
		templates:    prompts.NewTemplateEngine(),
		suggestModel: suggestModel,
		refineModel:  refineModel,
	}
}

// Suggest drafts a positive prompt for the given kind from a user question
// and the running conversation.
func (a *Assistant) Suggest(ctx context.Context, kind workflow.Kind, question string, history []Message) (string, error) {
	var conversation strings.Builder
	for _, msg := range history {
		speaker := "Assistant"
		if msg.Role == "user" {
			speaker = "User"
		}
		fmt.Fprintf(&conversation, "%s: %s\n", speaker, msg.Content)
	}

	prompt, err := a.templates.RenderSuggest(&prompts.SuggestContext{
		Question:     question,
		KindContext:  prompts.KindContext(kind),
		Conversation: conversation.String(),
	})
	if err != nil {
		return "", err
	}

	content, err := a.complete(ctx, a.suggestModel, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

var jsonBlockRegex = regexp.MustCompile(`(?s)\{.*\}`)

// Refine rewrites a prompt pair from user feedback. The model is asked for
// a JSON object; models that wrap it in prose are tolerated by extracting
// the outermost braces before parsing.
func (a *Assistant) Refine(ctx context.Context, kind workflow.Kind, lastPrompt, feedback string) (Refinement, error) {
	prompt, err := a.templates.RenderRefine(&prompts.RefineContext{
		LastPrompt:  lastPrompt,
		Feedback:    feedback,
		KindContext: prompts.KindContext(kind),
	})
	if err != nil {
		return Refinement{}, err
	}

	content, err := a.complete(ctx, a.refineModel, prompt)
	if err != nil {
		return Refinement{}, err
	}

	block := jsonBlockRegex.FindString(content)
	if block == "" {
		log.Printf("[Prompter] Refine response carried no JSON object: %q", content)
		return Refinement{}, fmt.Errorf("invalid response format")
	}

	var refined Refinement
	if err := json.Unmarshal([]byte(block), &refined); err != nil {
		return Refinement{}, fmt.Errorf("invalid response format: %w", err)
	}
	return refined, nil
}

func (a *Assistant) complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("assistant request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("assistant returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
