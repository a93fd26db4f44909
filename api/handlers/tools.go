package handlers

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/BaSui01/flowedit/types"
)

// ====== ToolCatalog：可供 Agent 选择的工具清单 ======

// ToolCatalog 记录后端可提供的工具，供 listAvailableTools 返回
type ToolCatalog struct {
	mu    sync.RWMutex
	tools map[string]types.ToolInfo
}

// NewToolCatalog 创建空的工具清单
func NewToolCatalog() *ToolCatalog {
	return &ToolCatalog{tools: make(map[string]types.ToolInfo)}
}

// DefaultToolCatalog 返回内置工具清单
func DefaultToolCatalog() *ToolCatalog {
	c := NewToolCatalog()
	for _, t := range []types.ToolInfo{
		{Name: "web_search", Description: "Search the web and return the top results"},
		{Name: "http_request", Description: "Send an HTTP request and return the response body"},
		{Name: "read_file", Description: "Read a file from the workspace"},
		{Name: "write_file", Description: "Write a file to the workspace"},
		{Name: "list_directory", Description: "List the entries of a workspace directory"},
		{Name: "calculator", Description: "Evaluate an arithmetic expression"},
	} {
		_ = c.Register(t)
	}
	return c
}

// Register 注册工具；名称重复时返回错误
func (c *ToolCatalog) Register(tool types.ToolInfo) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name)
	}
	c.tools[tool.Name] = tool
	return nil
}

// List 按名称排序返回全部工具
func (c *ToolCatalog) List() []types.ToolInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.ToolInfo, 0, len(c.tools))
	for _, name := range slices.Sorted(maps.Keys(c.tools)) {
		out = append(out, c.tools[name])
	}
	return out
}

// Has 判断工具是否存在
func (c *ToolCatalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tools[name]
	return ok
}
