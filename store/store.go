package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/BaSui01/flowedit/types"

	"github.com/google/uuid"
)

// Sentinel errors.
var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrAgentNotFound    = errors.New("agent not found")
)

// Store persists workflow documents.
type Store interface {
	ListWorkflows(ctx context.Context) ([]types.WorkflowSummary, error)
	GetWorkflow(ctx context.Context, id string) (*types.Workflow, error)
	// SaveWorkflow upserts wf and returns the stored copy. An empty id is
	// replaced by a new uuid.
	SaveWorkflow(ctx context.Context, wf *types.Workflow) (*types.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
	Close() error
}

// prepare returns a normalized deep copy of wf ready to be stored.
func prepare(wf *types.Workflow, now time.Time) (*types.Workflow, error) {
	if wf == nil {
		return nil, errors.New("workflow is nil")
	}
	cp, err := clone(wf)
	if err != nil {
		return nil, err
	}
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.Normalize()
	cp.UpdatedAt = now.UTC().Truncate(time.Millisecond)
	return cp, nil
}

func clone(wf *types.Workflow) (*types.Workflow, error) {
	data, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("encode workflow: %w", err)
	}
	return decode(data)
}

func encode(wf *types.Workflow) (string, error) {
	data, err := json.Marshal(wf)
	if err != nil {
		return "", fmt.Errorf("encode workflow: %w", err)
	}
	return string(data), nil
}

func decode(data []byte) (*types.Workflow, error) {
	var out types.Workflow
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	out.Normalize()
	return &out, nil
}

func sortSummaries(list []types.WorkflowSummary) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}
