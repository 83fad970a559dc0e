package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"comfy-studio/server/internal/generators"
	"comfy-studio/server/internal/workflow"
)

// RunState is the lifecycle state of one generation run.
type RunState string

const (
	RunPending        RunState = "pending"
	RunUploading      RunState = "uploading"
	RunSubmitted      RunState = "submitted"
	RunPolling        RunState = "polling"
	RunCompleted      RunState = "completed"
	RunCompletedEmpty RunState = "completed_empty"
	RunFailed         RunState = "failed"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunCompletedEmpty || s == RunFailed
}

// Run is the observable record of one generation request from acceptance
// to a terminal state.
type Run struct {
	ID        string              `json:"id"`
	Kind      workflow.Kind       `json:"kind"`
	State     RunState            `json:"state"`
	JobID     string              `json:"job_id,omitempty"`
	Artifacts []workflow.Artifact `json:"artifacts,omitempty"`
	Error     string              `json:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// GenerateRequest is one accepted generation request.
type GenerateRequest struct {
	Kind   workflow.Kind                     `json:"kind"`
	Params workflow.GenerationParams         `json:"params"`
	Inputs map[string]generators.VisualInput `json:"inputs,omitempty"`
}

// ErrEngineBusy is returned when a run is requested while another is in
// flight. The panel runs one job at a time.
var ErrEngineBusy = errors.New("a generation run is already in progress")

// assetResolver, jobSubmitter and jobPoller are the slices of the
// generators package the coordinator needs; tests substitute fakes.
type assetResolver interface {
	Resolve(ctx context.Context, kind workflow.Kind, inputs map[string]generators.VisualInput) (map[string]string, error)
}

type jobSubmitter interface {
	SubmitJob(ctx context.Context, graph workflow.Graph) (string, error)
	ViewURL(filename, subfolder, fileType string) string
}

type jobPoller interface {
	Poll(ctx context.Context, jobID string) (generators.HistoryEntry, error)
}

// RunEngine coordinates one generation run end to end: resolve assets,
// inject parameters, submit, poll, extract. All run state travels through
// the Run record; nothing about a run lives in package or engine fields,
// so runs cannot bleed into each other.
type RunEngine struct {
	resolver  assetResolver
	submitter jobSubmitter
	poller    jobPoller

	mu   sync.RWMutex
	runs map[string]*Run
	busy *atomic.Bool

	// OnUpdate, when set, observes every run state transition. The web
	// layer uses it to broadcast progress and persist history.
	OnUpdate func(run Run)
}

// NewRunEngine creates a coordinator around the given engine-facing parts.
func NewRunEngine(resolver assetResolver, submitter jobSubmitter, poller jobPoller) *RunEngine {
	return &RunEngine{
		resolver:  resolver,
		submitter: submitter,
		poller:    poller,
		runs:      make(map[string]*Run),
		busy:      atomic.NewBool(false),
	}
}

// Busy reports whether a run is currently in flight.
func (e *RunEngine) Busy() bool {
	return e.busy.Load()
}

// Run returns a snapshot of the run with the given id.
func (e *RunEngine) Run(runID string) (Run, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	run, ok := e.runs[runID]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// Runs returns snapshots of all known runs, newest first.
func (e *RunEngine) Runs() []Run {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Run, 0, len(e.runs))
	for _, run := range e.runs {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// StartRun accepts a generation request and executes it on a fresh
// goroutine. Only one run may be in flight at a time; a second request
// fails fast with ErrEngineBusy.
func (e *RunEngine) StartRun(ctx context.Context, req GenerateRequest) (string, error) {
	if _, err := workflow.Roles(req.Kind); err != nil {
		return "", err
	}
	if !e.busy.CompareAndSwap(false, true) {
		return "", ErrEngineBusy
	}

	run := &Run{
		ID:        uuid.NewString(),
		Kind:      req.Kind,
		State:     RunPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	e.mu.Lock()
	e.runs[run.ID] = run
	e.mu.Unlock()
	e.emit(run.ID)

	go func() {
		defer e.busy.Store(false)
		e.execute(ctx, run.ID, req)
	}()

	return run.ID, nil
}

// execute drives one run through the pipeline. Every failure lands the run
// in RunFailed with the error's message; there is no retry at any stage.
func (e *RunEngine) execute(ctx context.Context, runID string, req GenerateRequest) {
	rm, err := workflow.Roles(req.Kind)
	if err != nil {
		e.fail(runID, err)
		return
	}
	template, err := workflow.Template(req.Kind)
	if err != nil {
		e.fail(runID, err)
		return
	}

	e.transition(runID, RunUploading, nil)
	assets, err := e.resolver.Resolve(ctx, req.Kind, req.Inputs)
	if err != nil {
		e.fail(runID, err)
		return
	}

	graph, err := workflow.Inject(req.Kind, template, rm, req.Params, assets)
	if err != nil {
		e.fail(runID, err)
		return
	}

	jobID, err := e.submitter.SubmitJob(ctx, graph)
	if err != nil {
		e.fail(runID, err)
		return
	}
	log.Printf("[RunEngine] Run %s submitted as job %s (%s)", runID, jobID, req.Kind)
	e.transition(runID, RunSubmitted, func(run *Run) { run.JobID = jobID })

	e.transition(runID, RunPolling, nil)
	entry, err := e.poller.Poll(ctx, jobID)
	if err != nil {
		e.fail(runID, err)
		return
	}

	artifacts := workflow.Extract(req.Kind, rm, entry.Outputs, req.Params.Prompt, e.submitter.ViewURL)
	if len(artifacts) == 0 {
		log.Printf("[RunEngine] Run %s completed with no artifacts", runID)
		e.transition(runID, RunCompletedEmpty, nil)
		return
	}
	log.Printf("[RunEngine] Run %s completed with %d artifact(s)", runID, len(artifacts))
	e.transition(runID, RunCompleted, func(run *Run) { run.Artifacts = artifacts })
}

func (e *RunEngine) fail(runID string, err error) {
	log.Printf("[RunEngine] Run %s failed: %v", runID, err)
	e.transition(runID, RunFailed, func(run *Run) { run.Error = userMessage(err) })
}

func (e *RunEngine) transition(runID string, state RunState, mutate func(*Run)) {
	e.mu.Lock()
	run, ok := e.runs[runID]
	if ok {
		run.State = state
		run.UpdatedAt = time.Now()
		if mutate != nil {
			mutate(run)
		}
	}
	e.mu.Unlock()
	if ok {
		e.emit(runID)
	}
}

func (e *RunEngine) emit(runID string) {
	if e.OnUpdate == nil {
		return
	}
	if run, ok := e.Run(runID); ok {
		e.OnUpdate(run)
	}
}

// userMessage flattens any pipeline error into a single human-readable
// line for the panel.
func userMessage(err error) string {
	var rejected *generators.SubmissionRejectedError
	var failure *generators.EngineFailureError
	var upload *generators.AssetUploadError
	var mismatch *workflow.RoleMismatchError
	switch {
	case errors.Is(err, generators.ErrPollTimeout):
		return "generation timed out waiting for the engine"
	case errors.As(err, &rejected):
		return fmt.Sprintf("the engine rejected the job: %s", rejected.Body)
	case errors.As(err, &failure):
		return fmt.Sprintf("the engine reported a failure for job %s", failure.JobID)
	case errors.As(err, &upload):
		return fmt.Sprintf("failed to upload the %s image: %v", upload.Slot, upload.Cause)
	case errors.As(err, &mismatch):
		return fmt.Sprintf("workflow template is incompatible: %s", mismatch.Reason)
	default:
		return err.Error()
	}
}
