package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comfy-studio/server/internal/generators"
	"comfy-studio/server/internal/workflow"
)

type fakeResolver struct {
	assets map[string]string
	err    error
}

func (f *fakeResolver) Resolve(ctx context.Context, kind workflow.Kind, inputs map[string]generators.VisualInput) (map[string]string, error) {
	return f.assets, f.err
}

type fakeSubmitter struct {
	jobID string
	err   error
	graph workflow.Graph
}

func (f *fakeSubmitter) SubmitJob(ctx context.Context, graph workflow.Graph) (string, error) {
	f.graph = graph
	return f.jobID, f.err
}

func (f *fakeSubmitter) ViewURL(filename, subfolder, fileType string) string {
	return "http://engine/view?filename=" + filename
}

type fakePoller struct {
	entry generators.HistoryEntry
	err   error
}

func (f *fakePoller) Poll(ctx context.Context, jobID string) (generators.HistoryEntry, error) {
	return f.entry, f.err
}

// awaitTerminal drains state transitions until the run reaches a terminal
// state, returning the full sequence observed.
func awaitTerminal(t *testing.T, updates <-chan Run) []RunState {
	t.Helper()
	var states []RunState
	deadline := time.After(5 * time.Second)
	for {
		select {
		case run := <-updates:
			states = append(states, run.State)
			if run.State.Terminal() {
				return states
			}
		case <-deadline:
			t.Fatalf("run never reached a terminal state; saw %v", states)
		}
	}
}

func newTestEngine(resolver *fakeResolver, submitter *fakeSubmitter, poller jobPoller) (*RunEngine, chan Run) {
	e := NewRunEngine(resolver, submitter, poller)
	updates := make(chan Run, 32)
	e.OnUpdate = func(run Run) { updates <- run }
	return e, updates
}

func TestRunPipelineCompletes(t *testing.T) {
	poller := &fakePoller{entry: generators.HistoryEntry{
		Status: &generators.HistoryStatus{Completed: true},
		Outputs: map[string]workflow.NodeOutput{
			"9": {Images: []workflow.ImageRef{{Filename: "result.png", Type: "output"}}},
		},
	}}
	submitter := &fakeSubmitter{jobID: "job-1"}
	e, updates := newTestEngine(&fakeResolver{}, submitter, poller)

	runID, err := e.StartRun(context.Background(), GenerateRequest{
		Kind:   workflow.KindImageGeneration,
		Params: workflow.GenerationParams{Prompt: "a lighthouse at dusk", Seed: 42, Steps: 20, CFG: 8, Width: 512, Height: 512},
	})
	require.NoError(t, err)

	states := awaitTerminal(t, updates)
	assert.Equal(t, []RunState{RunPending, RunUploading, RunSubmitted, RunPolling, RunCompleted}, states)

	run, ok := e.Run(runID)
	require.True(t, ok)
	assert.Equal(t, "job-1", run.JobID)
	require.Len(t, run.Artifacts, 1)
	assert.Contains(t, run.Artifacts[0].URL, "result.png")
	assert.Equal(t, "a lighthouse at dusk", run.Artifacts[0].Prompt)

	// The submitted graph carries the injected prompt.
	require.NotNil(t, submitter.graph)
	assert.Equal(t, "a lighthouse at dusk", submitter.graph["6"].Inputs["text"])
}

func TestRunCompletedEmptyIsNotFailure(t *testing.T) {
	poller := &fakePoller{entry: generators.HistoryEntry{
		Status:  &generators.HistoryStatus{Completed: true},
		Outputs: map[string]workflow.NodeOutput{},
	}}
	e, updates := newTestEngine(&fakeResolver{}, &fakeSubmitter{jobID: "job-1"}, poller)

	runID, err := e.StartRun(context.Background(), GenerateRequest{
		Kind:   workflow.KindImageGeneration,
		Params: workflow.GenerationParams{Prompt: "void", Seed: 1},
	})
	require.NoError(t, err)

	states := awaitTerminal(t, updates)
	assert.Equal(t, RunCompletedEmpty, states[len(states)-1])

	run, _ := e.Run(runID)
	assert.Empty(t, run.Error)
	assert.Empty(t, run.Artifacts)
}

func TestRunFailsOnMissingAssets(t *testing.T) {
	resolver := &fakeResolver{err: workflow.ErrMissingInpaintAssets}
	e, updates := newTestEngine(resolver, &fakeSubmitter{}, &fakePoller{})

	runID, err := e.StartRun(context.Background(), GenerateRequest{Kind: workflow.KindInpainting})
	require.NoError(t, err)

	states := awaitTerminal(t, updates)
	assert.Equal(t, RunFailed, states[len(states)-1])

	run, _ := e.Run(runID)
	assert.Equal(t, workflow.ErrMissingInpaintAssets.Error(), run.Error)
}

func TestRunFailsOnPollTimeout(t *testing.T) {
	e, updates := newTestEngine(&fakeResolver{}, &fakeSubmitter{jobID: "job-1"}, &fakePoller{err: generators.ErrPollTimeout})

	runID, err := e.StartRun(context.Background(), GenerateRequest{
		Kind:   workflow.KindImageGeneration,
		Params: workflow.GenerationParams{Prompt: "slow", Seed: 1},
	})
	require.NoError(t, err)

	awaitTerminal(t, updates)
	run, _ := e.Run(runID)
	assert.Equal(t, RunFailed, run.State)
	assert.Contains(t, run.Error, "timed out")
}

func TestSecondRunRejectedWhileBusy(t *testing.T) {
	release := make(chan struct{})
	poller := &blockingPoller{release: release}
	e, updates := newTestEngine(&fakeResolver{}, &fakeSubmitter{jobID: "job-1"}, poller)

	_, err := e.StartRun(context.Background(), GenerateRequest{
		Kind:   workflow.KindImageGeneration,
		Params: workflow.GenerationParams{Prompt: "first", Seed: 1},
	})
	require.NoError(t, err)

	// Wait until the first run is in flight.
	for run := range updates {
		if run.State == RunPolling {
			break
		}
	}

	_, err = e.StartRun(context.Background(), GenerateRequest{Kind: workflow.KindImageGeneration})
	assert.ErrorIs(t, err, ErrEngineBusy)

	close(release)
	awaitTerminal(t, updates)
	assert.Eventually(t, func() bool { return !e.Busy() }, time.Second, 10*time.Millisecond)
}

func TestStartRunRejectsUnknownKind(t *testing.T) {
	e, _ := newTestEngine(&fakeResolver{}, &fakeSubmitter{}, &fakePoller{})

	_, err := e.StartRun(context.Background(), GenerateRequest{Kind: workflow.Kind("melody-generation")})
	assert.ErrorIs(t, err, workflow.ErrUnknownKind)
	assert.False(t, e.Busy())
}

type blockingPoller struct {
	release chan struct{}
}

func (b *blockingPoller) Poll(ctx context.Context, jobID string) (generators.HistoryEntry, error) {
	<-b.release
	return generators.HistoryEntry{}, errors.New("released without result")
}
