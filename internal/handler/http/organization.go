package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/KavyaGunapati/TypeFromProject/internal/service"
	"github.com/KavyaGunapati/TypeFromProject/pkg/httputil"
	"github.com/KavyaGunapati/TypeFromProject/pkg/pagination"
)

// OrganizationHandler handles HTTP requests for organizations and their members.
type OrganizationHandler struct {
	orgs    *service.OrganizationService
	members *service.MembershipService
	logger  *slog.Logger
}

// NewOrganizationHandler creates a new organization HTTP handler.
func NewOrganizationHandler(orgs *service.OrganizationService, members *service.MembershipService, logger *slog.Logger) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs, members: members, logger: logger}
}

// --- Request DTOs ---

// CreateOrganizationRequest is the JSON request body for creating an organization.
type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,notblank,max=150"`
}

// UpdateOrganizationRequest is the JSON request body for updating an organization.
type UpdateOrganizationRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=150"`
	IsDeleted *bool   `json:"is_deleted"`
}

// AssignMemberRequest is the JSON request body for assigning a user to an organization.
type AssignMemberRequest struct {
	UserID string `json:"user_id" validate:"required,notblank"`
	Role   string `json:"role" validate:"required"`
}

// ChangeRoleRequest is the JSON request body for changing a member's role.
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// --- Organizations ---

// List handles GET /api/v1/organizations
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	includeDeleted, _ := strconv.ParseBool(r.URL.Query().Get("include_deleted"))

	result, err := h.orgs.List(r.Context(), includeDeleted, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Create handles POST /api/v1/organizations
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	org, err := h.orgs.Create(r.Context(), req.Name)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: org})
}

// Get handles GET /api/v1/organizations/{id}
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	org, err := h.orgs.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: org})
}

// Update handles PUT /api/v1/organizations/{id}
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateOrganizationRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	org, err := h.orgs.Update(r.Context(), id, service.UpdateOrganizationInput{
		Name:      req.Name,
		IsDeleted: req.IsDeleted,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: org})
}

// Delete handles DELETE /api/v1/organizations/{id}
func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if _, err := h.orgs.SoftDelete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Members ---

// ListMembers handles GET /api/v1/organizations/{id}/members
func (h *OrganizationHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	result, err := h.members.ListByOrganization(r.Context(), id, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// AssignMember handles POST /api/v1/organizations/{id}/members
func (h *OrganizationHandler) AssignMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req AssignMemberRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	m, err := h.members.Assign(r.Context(), id, req.UserID, req.Role)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: m})
}

// ChangeMemberRole handles PUT /api/v1/organizations/{id}/members/{userId}
func (h *OrganizationHandler) ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	userID, ok := httputil.ParseUUID(w, chi.URLParam(r, "userId"))
	if !ok {
		return
	}

	var req ChangeRoleRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	m, err := h.members.ChangeRole(r.Context(), id, userID.String(), req.Role)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: m})
}

// RemoveMember handles DELETE /api/v1/organizations/{id}/members/{userId}
func (h *OrganizationHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	userID, ok := httputil.ParseUUID(w, chi.URLParam(r, "userId"))
	if !ok {
		return
	}

	if err := h.members.Remove(r.Context(), id, userID.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
