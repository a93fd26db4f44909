package workflow

import (
	"sync"
	"time"
)

// Status is the state of an execution or of one task within it.
type Status string

const (
	StatusStarted   Status = "started"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// TaskExecution records one node run.
type TaskExecution struct {
	NodeID    string        `json:"node_id"`
	AgentID   string        `json:"agent_id"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Status    Status        `json:"status"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// History records the path of one workflow execution.
type History struct {
	ExecutionID string           `json:"execution_id"`
	WorkflowID  string           `json:"workflow_id"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     time.Time        `json:"end_time"`
	Duration    time.Duration    `json:"duration"`
	Status      Status           `json:"status"`
	Tasks       []*TaskExecution `json:"tasks"`
	Output      string           `json:"output,omitempty"`
	Error       string           `json:"error,omitempty"`
	mu          sync.RWMutex
}

// NewHistory creates a running history.
func NewHistory(executionID, workflowID string) *History {
	return &History{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		StartTime:   time.Now(),
		Status:      StatusRunning,
		Tasks:       make([]*TaskExecution, 0),
	}
}

// TaskStarted appends a running task record.
func (h *History) TaskStarted(nodeID, agentID string) *TaskExecution {
	h.mu.Lock()
	defer h.mu.Unlock()

	task := &TaskExecution{
		NodeID:    nodeID,
		AgentID:   agentID,
		StartTime: time.Now(),
		Status:    StatusRunning,
	}
	h.Tasks = append(h.Tasks, task)
	return task
}

// TaskFinished closes a task record.
func (h *History) TaskFinished(task *TaskExecution, output string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	task.EndTime = time.Now()
	task.Duration = task.EndTime.Sub(task.StartTime)
	task.Output = output
	if err != nil {
		task.Status = StatusFailed
		task.Error = err.Error()
	} else {
		task.Status = StatusCompleted
	}
}

// Finish sets the terminal status.
func (h *History) Finish(status Status, output string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.EndTime = time.Now()
	h.Duration = h.EndTime.Sub(h.StartTime)
	h.Status = status
	h.Output = output
	if err != nil {
		h.Error = err.Error()
	}
}

// Snapshot returns the status and a copy of the task records.
func (h *History) Snapshot() (Status, []TaskExecution) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	tasks := make([]TaskExecution, len(h.Tasks))
	for i, t := range h.Tasks {
		tasks[i] = *t
	}
	return h.Status, tasks
}

// Task returns a copy of the record for nodeID.
func (h *History) Task(nodeID string) (TaskExecution, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, t := range h.Tasks {
		if t.NodeID == nodeID {
			return *t, true
		}
	}
	return TaskExecution{}, false
}
