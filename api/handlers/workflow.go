package handlers

import (
	"net/http"

	"github.com/BaSui01/flowedit/store"
	"github.com/BaSui01/flowedit/types"

	"go.uber.org/zap"
)

// =============================================================================
// 📄 工作流 REST 接口
// =============================================================================

// WorkflowHandler 工作流 CRUD 的 REST 镜像
type WorkflowHandler struct {
	store  store.Store
	logger *zap.Logger
}

// NewWorkflowHandler 创建工作流处理器
func NewWorkflowHandler(st store.Store, logger *zap.Logger) *WorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowHandler{store: st, logger: logger.With(zap.String("component", "workflow_api"))}
}

// Routes 注册路由
func (h *WorkflowHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/workflows", h.HandleList)
	mux.HandleFunc("POST /api/v1/workflows", h.HandleCreate)
	mux.HandleFunc("GET /api/v1/workflows/{id}", h.HandleGet)
	mux.HandleFunc("PUT /api/v1/workflows/{id}", h.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/workflows/{id}", h.HandleDelete)
}

// HandleList 列出工作流
func (h *WorkflowHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListWorkflows(r.Context())
	if err != nil {
		WriteErr(w, r, storeError(err, ""), h.logger)
		return
	}
	WriteSuccess(w, r, list)
}

// HandleGet 获取单个工作流
func (h *WorkflowHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wf, err := h.store.GetWorkflow(r.Context(), id)
	if err != nil {
		WriteErr(w, r, storeError(err, id), h.logger)
		return
	}
	WriteSuccess(w, r, wf)
}

// HandleCreate 创建工作流；忽略请求体中的 id
func (h *WorkflowHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var wf types.Workflow
	if err := DecodeJSONBody(w, r, &wf, h.logger); err != nil {
		return
	}
	wf.ID = ""
	h.save(w, r, &wf, http.StatusCreated)
}

// HandleUpdate 覆盖指定 id 的工作流
func (h *WorkflowHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	id := r.PathValue("id")
	if _, err := h.store.GetWorkflow(r.Context(), id); err != nil {
		WriteErr(w, r, storeError(err, id), h.logger)
		return
	}
	var wf types.Workflow
	if err := DecodeJSONBody(w, r, &wf, h.logger); err != nil {
		return
	}
	if wf.ID != "" && wf.ID != id {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "body id does not match path", h.logger)
		return
	}
	wf.ID = id
	h.save(w, r, &wf, http.StatusOK)
}

func (h *WorkflowHandler) save(w http.ResponseWriter, r *http.Request, wf *types.Workflow, status int) {
	saved, err := h.store.SaveWorkflow(r.Context(), wf)
	if err != nil {
		WriteErr(w, r, storeError(err, wf.ID), h.logger)
		return
	}
	h.logger.Info("workflow saved", zap.String("workflow_id", saved.ID))
	WriteJSON(w, status, Response{
		Success:   true,
		Data:      map[string]string{"workflow_id": saved.ID},
		Timestamp: saved.UpdatedAt,
		RequestID: requestID(r),
	})
}

// HandleDelete 删除工作流
func (h *WorkflowHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeleteWorkflow(r.Context(), id); err != nil {
		WriteErr(w, r, storeError(err, id), h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
