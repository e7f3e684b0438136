package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/flowmesh"
	"github.com/BaSui01/flowmesh/workflow"
)

// =============================================================================
// 🌐 工作流 API Handler
// =============================================================================

// workflowAPI exposes the store and engine over HTTP.
type workflowAPI struct {
	mesh   *flowmesh.Mesh
	logger *zap.Logger
}

func newWorkflowAPI(mesh *flowmesh.Mesh, logger *zap.Logger) *workflowAPI {
	return &workflowAPI{
		mesh:   mesh,
		logger: logger.With(zap.String("component", "workflow_api")),
	}
}

// healthStatus 健康状态响应
type healthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

func (a *workflowAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   flowmesh.Version,
	})
}

func (a *workflowAPI) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    flowmesh.Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

func (a *workflowAPI) handleNodeTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.mesh.Registry.List())
}

// =============================================================================
// 📋 工作流 CRUD
// =============================================================================

func (a *workflowAPI) handleCreate(w http.ResponseWriter, r *http.Request) {
	var wf workflow.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		writeError(w, http.StatusBadRequest, "invalid workflow body: "+err.Error())
		return
	}
	if wf.State == "" {
		wf.State = workflow.StateActive
	}

	id, err := a.mesh.Store.Create(&wf)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	created, err := a.mesh.Store.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *workflowAPI) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.mesh.Store.List())
}

func (a *workflowAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	wf, err := a.mesh.Store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (a *workflowAPI) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var wf workflow.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		writeError(w, http.StatusBadRequest, "invalid workflow body: "+err.Error())
		return
	}
	wf.ID = id

	if err := a.mesh.Store.Update(&wf); err != nil {
		if errors.Is(err, workflow.ErrWorkflowNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := a.mesh.Store.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *workflowAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.mesh.Store.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ▶️ 执行
// =============================================================================

// executeRequest 执行请求体
type executeRequest struct {
	TriggerData json.RawMessage `json:"trigger_data,omitempty"`
	Mode        workflow.Mode   `json:"mode,omitempty"`
}

func (a *workflowAPI) handleExecute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req executeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid execute body: "+err.Error())
			return
		}
	}
	mode := req.Mode
	if mode == "" {
		mode = workflow.ModeManual
	}

	// Lookup failures surface inside the ExecutionResult; map the common
	// ones to HTTP codes up front for a sane API.
	if _, err := a.mesh.Store.Get(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	result, err := a.mesh.Engine.ExecuteWorkflow(r.Context(), id, req.TriggerData, mode)
	if err != nil {
		if errors.Is(err, workflow.ErrQueueFull) {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		if errors.Is(err, workflow.ErrQueueClosed) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid workflow id")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Error: message})
}
