package workflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/flowedit/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Event types published during an execution.
const (
	EventStatus = "workflowExecutionStatus"
	EventLog    = "logMessage"
)

// StatusEvent is the payload of EventStatus.
type StatusEvent struct {
	WorkflowID  string `json:"workflow_id"`
	Status      Status `json:"status"`
	CurrentTask string `json:"current_task,omitempty"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
}

// LogEvent is the payload of EventLog.
type LogEvent struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Publisher delivers execution events to clients.
type Publisher interface {
	Broadcast(ctx context.Context, typ string, payload any) error
}

// Recorder observes finished executions.
type Recorder interface {
	RecordExecution(status string, duration time.Duration)
}

// Task is one node run handed to a TaskFunc.
type Task struct {
	WorkflowID string
	NodeID     string
	Agent      *types.Agent
	Input      string
	Arguments  map[string]any
}

// TaskFunc runs one task and returns its output.
type TaskFunc func(ctx context.Context, task Task) (string, error)

// Request carries the inputs of an execution.
type Request struct {
	Query     string
	Arguments map[string]any
}

// Config bounds an execution.
type Config struct {
	// Timeout caps one whole execution. Zero means no limit.
	Timeout time.Duration
	// TaskDelay is how long the built-in task takes.
	TaskDelay time.Duration
}

// Executor runs orchestration graphs stage by stage. Tasks of one stage
// run concurrently; a failed task stops the execution.
type Executor struct {
	cfg      Config
	events   Publisher
	recorder Recorder
	run      TaskFunc
	logger   *zap.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]string // workflow id -> execution id
}

// NewExecutor creates an executor publishing through events.
func NewExecutor(events Publisher, cfg Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	e := &Executor{
		cfg:     cfg,
		events:  events,
		logger:  logger.With(zap.String("component", "workflow_executor")),
		base:    base,
		cancel:  cancel,
		running: make(map[string]string),
	}
	e.run = e.simulate
	return e
}

// SetRecorder installs the metrics recorder.
func (e *Executor) SetRecorder(r Recorder) { e.recorder = r }

// SetTaskFunc replaces the built-in task.
func (e *Executor) SetTaskFunc(fn TaskFunc) { e.run = fn }

// Running reports whether wf has an execution in flight.
func (e *Executor) Running(workflowID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.running[workflowID]
	return ok
}

// Start launches an execution of wf in the background and returns its
// id. Only one execution per workflow may run at a time.
func (e *Executor) Start(wf *types.Workflow, req Request) (string, error) {
	if wf == nil || wf.ID == "" {
		return "", types.NewInvalidRequestError("workflow id is required")
	}
	if err := e.base.Err(); err != nil {
		return "", types.NewError(types.ErrServiceUnavailable, "executor is shutting down")
	}

	execID := uuid.NewString()
	e.mu.Lock()
	if _, busy := e.running[wf.ID]; busy {
		e.mu.Unlock()
		return "", types.NewError(types.ErrConflict, "workflow is already running")
	}
	e.running[wf.ID] = execID
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.running, wf.ID)
			e.mu.Unlock()
		}()
		_ = e.execute(e.base, execID, wf, req)
	}()
	return execID, nil
}

// Run executes wf synchronously.
func (e *Executor) Run(ctx context.Context, wf *types.Workflow, req Request) *History {
	return e.execute(ctx, uuid.NewString(), wf, req)
}

// Wait blocks until every started execution has finished.
func (e *Executor) Wait() { e.wg.Wait() }

// Shutdown cancels running executions and waits for them, or for ctx.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) execute(ctx context.Context, execID string, wf *types.Workflow, req Request) *History {
	h := NewHistory(execID, wf.ID)
	logger := e.logger.With(zap.String("execution_id", execID), zap.String("workflow_id", wf.ID))

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	// Events still go out after the deadline.
	pubCtx := context.WithoutCancel(ctx)

	args := mergeArguments(wf.Arguments, req.Arguments)
	stages := Plan(wf.OrchestrationGraph)
	logger.Info("starting workflow execution", zap.Int("stages", len(stages)))
	e.status(pubCtx, StatusEvent{WorkflowID: wf.ID, Status: StatusStarted})
	e.log(pubCtx, "info", fmt.Sprintf("Executing workflow %q with %d task(s)", displayName(wf), len(wf.OrchestrationGraph.Nodes)))

	var (
		outMu   sync.Mutex
		outputs = make(map[string]string)
		last    []string
		runErr  error
	)
	for _, stage := range stages {
		g, gctx := errgroup.WithContext(ctx)
		for _, nodeID := range stage {
			node := wf.OrchestrationGraph.Nodes[nodeID]
			agent := wf.Agents[node.AgentID]
			if agent == nil {
				runErr = fmt.Errorf("node %s: agent %s not found", nodeID, node.AgentID)
				break
			}

			outMu.Lock()
			input := taskInput(req.Query, Predecessors(wf.OrchestrationGraph, nodeID), outputs)
			outMu.Unlock()

			g.Go(func() error {
				e.status(pubCtx, StatusEvent{WorkflowID: wf.ID, Status: StatusRunning, CurrentTask: agent.Name})
				rec := h.TaskStarted(nodeID, agent.ID)
				out, err := e.run(gctx, Task{
					WorkflowID: wf.ID,
					NodeID:     nodeID,
					Agent:      agent,
					Input:      input,
					Arguments:  args,
				})
				h.TaskFinished(rec, out, err)
				if err != nil {
					return fmt.Errorf("task %s (%s): %w", agent.Name, nodeID, err)
				}
				outMu.Lock()
				outputs[nodeID] = out
				outMu.Unlock()
				e.log(pubCtx, "info", fmt.Sprintf("Task %s finished", agent.Name))
				return nil
			})
		}
		if err := g.Wait(); err != nil && runErr == nil {
			runErr = err
		}
		if runErr == nil && ctx.Err() != nil {
			runErr = ctx.Err()
		}
		if runErr != nil {
			break
		}
		last = stage
	}

	status, output := StatusCompleted, ""
	if runErr == nil {
		parts := make([]string, 0, len(last))
		for _, id := range last {
			parts = append(parts, outputs[id])
		}
		output = strings.Join(parts, "\n")
	} else {
		status = StatusFailed
		switch {
		case errors.Is(runErr, context.DeadlineExceeded):
			runErr = fmt.Errorf("execution timed out after %s", e.cfg.Timeout)
		case errors.Is(runErr, context.Canceled):
			status = StatusCancelled
		}
	}
	h.Finish(status, output, runErr)

	ev := StatusEvent{WorkflowID: wf.ID, Status: status, Output: output}
	if runErr != nil {
		ev.Error = runErr.Error()
		logger.Warn("workflow execution ended", zap.String("status", string(status)), zap.Error(runErr))
		e.log(pubCtx, "error", runErr.Error())
	} else {
		logger.Info("workflow execution completed", zap.Duration("duration", h.Duration))
	}
	e.status(pubCtx, ev)
	if e.recorder != nil {
		e.recorder.RecordExecution(string(status), h.Duration)
	}
	return h
}

// simulate is the built-in task. It waits TaskDelay and echoes its input.
func (e *Executor) simulate(ctx context.Context, task Task) (string, error) {
	if e.cfg.TaskDelay > 0 {
		t := time.NewTimer(e.cfg.TaskDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return fmt.Sprintf("[%s] %s", task.Agent.Name, task.Input), nil
}

func (e *Executor) status(ctx context.Context, ev StatusEvent) {
	e.publish(ctx, EventStatus, ev)
}

func (e *Executor) log(ctx context.Context, level, msg string) {
	e.publish(ctx, EventLog, LogEvent{Level: level, Message: msg})
}

func (e *Executor) publish(ctx context.Context, typ string, payload any) {
	if e.events == nil {
		return
	}
	if err := e.events.Broadcast(ctx, typ, payload); err != nil {
		e.logger.Warn("failed to publish execution event", zap.String("type", typ), zap.Error(err))
	}
}

// taskInput is the query for entry tasks, or the upstream outputs
// otherwise.
func taskInput(query string, preds []string, outputs map[string]string) string {
	var parts []string
	for _, p := range preds {
		if out, ok := outputs[p]; ok {
			parts = append(parts, out)
		}
	}
	if len(parts) == 0 {
		return query
	}
	return strings.Join(parts, "\n")
}

// mergeArguments fills declared defaults under the supplied values.
func mergeArguments(declared map[string]types.Argument, supplied map[string]any) map[string]any {
	out := make(map[string]any, len(declared)+len(supplied))
	for name, arg := range declared {
		if arg.Default != "" {
			out[name] = arg.Default
		}
	}
	maps.Copy(out, supplied)
	return out
}

func displayName(wf *types.Workflow) string {
	if wf.Name != "" {
		return wf.Name
	}
	return wf.ID
}
