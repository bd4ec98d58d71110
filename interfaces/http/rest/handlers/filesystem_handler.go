// Package handlers decodes HTTP requests into tree engine calls.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/danilohgds/f-system/application/services"
	"github.com/danilohgds/f-system/domain/filesystem"
	"github.com/danilohgds/f-system/pkg/common"
	pkgerrors "github.com/danilohgds/f-system/pkg/errors"
	"github.com/danilohgds/f-system/pkg/utils"
)

// FilesystemHandler handles the filesystem REST endpoints
type FilesystemHandler struct {
	tree   *services.TreeService
	logger *zap.Logger
}

// NewFilesystemHandler creates a new filesystem handler
func NewFilesystemHandler(tree *services.TreeService, logger *zap.Logger) *FilesystemHandler {
	return &FilesystemHandler{
		tree:   tree,
		logger: logger,
	}
}

// CreateItemRequest is the body of POST /folders/{folderID}/items
type CreateItemRequest struct {
	Name   string `json:"name" validate:"required,max=255"`
	Type   string `json:"type" validate:"required,oneof=FOLDER FILE"`
	ItemID string `json:"itemId,omitempty" validate:"omitempty,uuid4"`
}

// RenameItemRequest is the body of POST /folders/{folderID}/rename
type RenameItemRequest struct {
	Name    string `json:"name" validate:"required"`
	NewName string `json:"newName" validate:"required,max=255"`
}

// InitializeRoot handles POST /root
func (h *FilesystemHandler) InitializeRoot(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.respondError(w, pkgerrors.NewUnauthorizedError(""))
		return
	}

	root, err := h.tree.InitializeRoot(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, root)
}

// ListChildren handles GET /folders/{folderID}/children
func (h *FilesystemHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.respondError(w, pkgerrors.NewUnauthorizedError(""))
		return
	}

	children, err := h.tree.ListChildrenForTenant(r.Context(), userID, chi.URLParam(r, "folderID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if children == nil {
		children = []filesystem.Node{}
	}
	h.respondJSON(w, http.StatusOK, children)
}

// CreateItem handles POST /folders/{folderID}/items
func (h *FilesystemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.respondError(w, pkgerrors.NewUnauthorizedError(""))
		return
	}

	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, pkgerrors.NewValidationError(err.Error()))
		return
	}

	node, err := h.tree.CreateNode(r.Context(), services.CreateNodeInput{
		ParentID: chi.URLParam(r, "folderID"),
		Name:     req.Name,
		Type:     filesystem.NodeType(req.Type),
		UserID:   userID,
		ItemID:   req.ItemID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, node)
}

// RenameItem handles POST /folders/{folderID}/rename
func (h *FilesystemHandler) RenameItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.respondError(w, pkgerrors.NewUnauthorizedError(""))
		return
	}

	var req RenameItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, pkgerrors.NewValidationError(err.Error()))
		return
	}

	node, err := h.tree.RenameNodeForTenant(r.Context(), userID, chi.URLParam(r, "folderID"), req.Name, req.NewName)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, node)
}

// DeleteItem handles DELETE /items/{itemID}
func (h *FilesystemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.respondError(w, pkgerrors.NewUnauthorizedError(""))
		return
	}

	if err := h.tree.DeleteNodeForTenant(r.Context(), userID, chi.URLParam(r, "itemID")); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// DeleteSubtree handles DELETE /folders/{folderID}
func (h *FilesystemHandler) DeleteSubtree(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.respondError(w, pkgerrors.NewUnauthorizedError(""))
		return
	}

	result, err := h.tree.DeleteSubtree(r.Context(), chi.URLParam(r, "folderID"), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// DeleteByPathPrefix handles DELETE /paths?prefix=
func (h *FilesystemHandler) DeleteByPathPrefix(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.respondError(w, pkgerrors.NewUnauthorizedError(""))
		return
	}

	result, err := h.tree.DeleteByPathPrefix(r.Context(), userID, r.URL.Query().Get("prefix"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

func (h *FilesystemHandler) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *FilesystemHandler) respondError(w http.ResponseWriter, err error) {
	appErr := pkgerrors.GetAppError(err)
	if appErr == nil {
		h.logger.Error("Unclassified error", zap.Error(err))
		appErr = pkgerrors.NewInternalError("internal error")
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	h.respondJSON(w, status, appErr)
}
