package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"

	"github.com/BaSui01/flowedit/editor"
	"github.com/BaSui01/flowedit/store"
	"github.com/BaSui01/flowedit/transport"
	"github.com/BaSui01/flowedit/types"
	"github.com/BaSui01/flowedit/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// 🧭 RPC 命令集（websocket 上的后端契约）
// =============================================================================

// Commands 实现工作流与 Agent 管理命令
type Commands struct {
	store    store.Store
	executor *workflow.Executor
	tools    *ToolCatalog
	logger   *zap.Logger
}

// NewCommands 创建命令集；tools 为 nil 时使用内置清单
func NewCommands(st store.Store, executor *workflow.Executor, tools *ToolCatalog, logger *zap.Logger) *Commands {
	if tools == nil {
		tools = DefaultToolCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Commands{
		store:    st,
		executor: executor,
		tools:    tools,
		logger:   logger.With(zap.String("component", "commands")),
	}
}

// Register 把全部命令注册到 router
func (c *Commands) Register(r *transport.Router) {
	r.Handle("listWorkflows", c.listWorkflows)
	r.Handle("getWorkflow", c.getWorkflow)
	r.Handle("saveWorkflow", c.saveWorkflow)
	r.Handle("deleteWorkflow", c.deleteWorkflow)
	r.Handle("listAgents", c.listAgents)
	r.Handle("saveAgent", c.saveAgent)
	r.Handle("deleteAgent", c.deleteAgent)
	r.Handle("listAvailableTools", c.listAvailableTools)
	r.Handle("executeWorkflow", c.executeWorkflow)
}

type workflowRef struct {
	WorkflowID string `json:"workflow_id"`
}

func (p workflowRef) validate() error {
	if p.WorkflowID == "" {
		return types.NewInvalidRequestError("workflow_id is required")
	}
	return nil
}

func (c *Commands) listWorkflows(ctx context.Context, _ json.RawMessage) (any, error) {
	list, err := c.store.ListWorkflows(ctx)
	if err != nil {
		return nil, storeError(err, "")
	}
	return map[string]any{"workflows": list}, nil
}

func (c *Commands) getWorkflow(ctx context.Context, params json.RawMessage) (any, error) {
	wf, err := c.load(ctx, params)
	if err != nil {
		return nil, err
	}
	return wf, nil
}

func (c *Commands) saveWorkflow(ctx context.Context, params json.RawMessage) (any, error) {
	var wf types.Workflow
	if err := transport.DecodeParams(params, &wf); err != nil {
		return nil, err
	}
	saved, err := c.store.SaveWorkflow(ctx, &wf)
	if err != nil {
		return nil, storeError(err, wf.ID)
	}
	c.logger.Info("workflow saved", zap.String("workflow_id", saved.ID), zap.String("name", saved.Name))
	return map[string]string{"workflow_id": saved.ID}, nil
}

func (c *Commands) deleteWorkflow(ctx context.Context, params json.RawMessage) (any, error) {
	var p workflowRef
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if c.executor != nil && c.executor.Running(p.WorkflowID) {
		return nil, types.NewError(types.ErrConflict, "workflow is executing")
	}
	if err := c.store.DeleteWorkflow(ctx, p.WorkflowID); err != nil {
		return nil, storeError(err, p.WorkflowID)
	}
	c.logger.Info("workflow deleted", zap.String("workflow_id", p.WorkflowID))
	return map[string]string{"workflow_id": p.WorkflowID}, nil
}

func (c *Commands) listAgents(ctx context.Context, params json.RawMessage) (any, error) {
	wf, err := c.load(ctx, params)
	if err != nil {
		return nil, err
	}
	agents := make([]*types.Agent, 0, len(wf.Agents))
	for _, id := range slices.Sorted(maps.Keys(wf.Agents)) {
		agents = append(agents, wf.Agents[id])
	}
	return map[string]any{"agents": agents}, nil
}

type saveAgentParams struct {
	WorkflowID string       `json:"workflow_id"`
	Agent      *types.Agent `json:"agent"`
}

func (c *Commands) saveAgent(ctx context.Context, params json.RawMessage) (any, error) {
	var p saveAgentParams
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := (workflowRef{p.WorkflowID}).validate(); err != nil {
		return nil, err
	}
	if p.Agent == nil {
		return nil, types.NewInvalidRequestError("agent is required")
	}
	if p.Agent.Name == "" {
		return nil, types.NewInvalidRequestError("agent name is required")
	}

	wf, err := c.store.GetWorkflow(ctx, p.WorkflowID)
	if err != nil {
		return nil, storeError(err, p.WorkflowID)
	}
	if p.Agent.ID == "" {
		p.Agent.ID = uuid.NewString()
	}
	for _, t := range p.Agent.Tools {
		if !c.tools.Has(t.Name) {
			c.logger.Warn("agent references unknown tool",
				zap.String("agent_id", p.Agent.ID), zap.String("tool", t.Name))
		}
	}
	wf.Agents[p.Agent.ID] = p.Agent

	if _, err := c.store.SaveWorkflow(ctx, wf); err != nil {
		return nil, storeError(err, wf.ID)
	}
	return map[string]string{"agent_id": p.Agent.ID}, nil
}

type agentRef struct {
	WorkflowID string `json:"workflow_id"`
	AgentID    string `json:"agent_id"`
}

func (c *Commands) deleteAgent(ctx context.Context, params json.RawMessage) (any, error) {
	var p agentRef
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := (workflowRef{p.WorkflowID}).validate(); err != nil {
		return nil, err
	}
	wf, err := c.store.GetWorkflow(ctx, p.WorkflowID)
	if err != nil {
		return nil, storeError(err, p.WorkflowID)
	}
	if !editor.DeleteAgentFromWorkflow(wf, p.AgentID) {
		return nil, storeError(store.ErrAgentNotFound, p.AgentID)
	}
	if _, err := c.store.SaveWorkflow(ctx, wf); err != nil {
		return nil, storeError(err, wf.ID)
	}
	c.logger.Info("agent deleted", zap.String("workflow_id", wf.ID), zap.String("agent_id", p.AgentID))
	return map[string]string{"agent_id": p.AgentID}, nil
}

func (c *Commands) listAvailableTools(context.Context, json.RawMessage) (any, error) {
	return map[string]any{"tools": c.tools.List()}, nil
}

type executeParams struct {
	WorkflowID   string         `json:"workflow_id"`
	InitialQuery string         `json:"initial_query"`
	Arguments    map[string]any `json:"arguments"`
}

func (c *Commands) executeWorkflow(ctx context.Context, params json.RawMessage) (any, error) {
	var p executeParams
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := (workflowRef{p.WorkflowID}).validate(); err != nil {
		return nil, err
	}
	if c.executor == nil {
		return nil, types.NewError(types.ErrServiceUnavailable, "execution is disabled")
	}
	wf, err := c.store.GetWorkflow(ctx, p.WorkflowID)
	if err != nil {
		return nil, storeError(err, p.WorkflowID)
	}
	query := p.InitialQuery
	if query == "" {
		query = wf.Query
	}
	if query == "" {
		return nil, types.NewInvalidRequestError("initial_query is required")
	}

	execID, err := c.executor.Start(wf, workflow.Request{Query: query, Arguments: p.Arguments})
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"status":       "started",
		"execution_id": execID,
		"message":      "Workflow execution started",
	}, nil
}

func (c *Commands) load(ctx context.Context, params json.RawMessage) (*types.Workflow, error) {
	var p workflowRef
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	wf, err := c.store.GetWorkflow(ctx, p.WorkflowID)
	if err != nil {
		return nil, storeError(err, p.WorkflowID)
	}
	return wf, nil
}

// storeError 把存储层错误转换为 types.Error
func storeError(err error, id string) error {
	switch {
	case errors.Is(err, store.ErrWorkflowNotFound):
		return types.NewNotFoundError("workflow not found: " + id).WithCause(err)
	case errors.Is(err, store.ErrAgentNotFound):
		return types.NewNotFoundError("agent not found: " + id).WithCause(err)
	}
	if _, ok := types.AsError(err); ok {
		return err
	}
	return types.WrapError(err, types.ErrInternalError, "store operation failed")
}
