package prompter

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comfy-studio/server/internal/prompts"
	"comfy-studio/server/internal/workflow"
)

type scriptedCompleter struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (s *scriptedCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: s.content}},
		},
	}, nil
}

func newTestAssistant(completer chatCompleter) *Assistant {
	return &Assistant{
		client:       completer,
		templates:    prompts.NewTemplateEngine(),
		suggestModel: defaultSuggestModel,
		refineModel:  defaultRefineModel,
	}
}

func TestSuggestBuildsConversation(t *testing.T) {
	completer := &scriptedCompleter{content: "  a red lighthouse on a cliff, golden hour, highly detailed  "}
	a := newTestAssistant(completer)

	history := []Message{
		{Role: "user", Content: "something maritime"},
		{Role: "assistant", Content: "a harbor at dawn"},
	}
	got, err := a.Suggest(context.Background(), workflow.KindImageGeneration, "make it dramatic", history)
	require.NoError(t, err)
	assert.Equal(t, "a red lighthouse on a cliff, golden hour, highly detailed", got)

	require.Len(t, completer.lastReq.Messages, 1)
	prompt := completer.lastReq.Messages[0].Content
	assert.Contains(t, prompt, "User: something maritime")
	assert.Contains(t, prompt, "Assistant: a harbor at dawn")
	assert.Contains(t, prompt, "User: make it dramatic")
	assert.Equal(t, defaultSuggestModel, completer.lastReq.Model)
}

func TestRefineParsesDirectJSON(t *testing.T) {
	completer := &scriptedCompleter{content: `{"positive": "a castle, intricate detail", "negative": "blurry, low quality"}`}
	a := newTestAssistant(completer)

	got, err := a.Refine(context.Background(), workflow.KindImageGeneration, "a castle", "more detail")
	require.NoError(t, err)
	assert.Equal(t, "a castle, intricate detail", got.Positive)
	assert.Equal(t, "blurry, low quality", got.Negative)
	assert.Equal(t, defaultRefineModel, completer.lastReq.Model)
}

func TestRefineExtractsJSONFromProse(t *testing.T) {
	completer := &scriptedCompleter{content: "Here is the improved version:\n{\"positive\": \"a castle at night\", \"negative\": \"daylight\"}\nHope this helps!"}
	a := newTestAssistant(completer)

	got, err := a.Refine(context.Background(), workflow.KindInpainting, "a castle", "night time")
	require.NoError(t, err)
	assert.Equal(t, "a castle at night", got.Positive)
}

func TestRefineRejectsNonJSONResponse(t *testing.T) {
	completer := &scriptedCompleter{content: "I cannot produce JSON right now."}
	a := newTestAssistant(completer)

	_, err := a.Refine(context.Background(), workflow.KindImageGeneration, "a castle", "more detail")
	assert.ErrorContains(t, err, "invalid response format")
}

func TestSuggestSurfacesTransportError(t *testing.T) {
	completer := &scriptedCompleter{err: errors.New("connection refused")}
	a := newTestAssistant(completer)

	_, err := a.Suggest(context.Background(), workflow.KindImageGeneration, "anything", nil)
	assert.ErrorContains(t, err, "assistant request failed")
}
