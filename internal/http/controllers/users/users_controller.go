package users

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/usersvc/internal/directory"
	"github.com/dropDatabas3/usersvc/internal/http/dto"
	httperrors "github.com/dropDatabas3/usersvc/internal/http/errors"
	"github.com/dropDatabas3/usersvc/internal/http/helpers"
	mw "github.com/dropDatabas3/usersvc/internal/http/middlewares"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
)

// UsersController maneja el recurso usuario.
type UsersController struct {
	service Service
}

func NewUsersController(service Service) *UsersController {
	return &UsersController{service: service}
}

// List GET /api/v1/users/?is_active=&limit=&offset=
func (c *UsersController) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := mw.Caller(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}

	active, ok := helpers.QueryBool(r, "is_active")
	if !ok {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("is_active must be a boolean"))
		return
	}
	limit, ok1 := helpers.QueryInt(r, "limit", 0)
	offset, ok2 := helpers.QueryInt(r, "offset", 0)
	if !ok1 || !ok2 {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("limit and offset must be non-negative integers"))
		return
	}

	page, err := c.service.ListUsers(r.Context(), caller, directory.ListOptions{Active: active, Limit: limit, Offset: offset})
	if err != nil {
		httperrors.WriteError(w, httperrors.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.UserList(page.Items, page.Total))
}

// Me GET /api/v1/users/me/
func (c *UsersController) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := mw.Caller(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	u, err := c.service.GetSelf(r.Context(), caller)
	if err != nil {
		httperrors.WriteError(w, httperrors.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.UserFrom(u))
}

// Get GET /api/v1/users/{id}/
func (c *UsersController) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := mw.Caller(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := c.service.GetUser(r.Context(), caller, id)
	if err != nil {
		httperrors.WriteError(w, httperrors.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.UserFrom(u))
}

// SetRole PATCH /api/v1/users/{id}/set_role/
func (c *UsersController) SetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("UsersController.SetRole"))

	caller, ok := mw.Caller(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.SetRoleRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		if errors.Is(err, helpers.ErrBodyTooLarge) {
			httperrors.WriteError(w, httperrors.ErrBodyTooLarge)
			return
		}
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if err := req.Validate(); err != nil {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail(err.Error()))
		return
	}

	u, err := c.service.SetRole(ctx, caller, id, req.Role)
	if err != nil {
		log.Debug("set role rejected", logger.Err(err))
		httperrors.WriteError(w, httperrors.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.UserFrom(u))
}

// Activate POST /api/v1/users/{id}/activate/
func (c *UsersController) Activate(w http.ResponseWriter, r *http.Request) {
	caller, ok := mw.Caller(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := c.service.Activate(r.Context(), caller, id)
	if err != nil {
		httperrors.WriteError(w, httperrors.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.UserFrom(u))
}

// Deactivate POST /api/v1/users/{id}/deactivate/
func (c *UsersController) Deactivate(w http.ResponseWriter, r *http.Request) {
	caller, ok := mw.Caller(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := c.service.Deactivate(r.Context(), caller, id)
	if err != nil {
		httperrors.WriteError(w, httperrors.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.UserFrom(u))
}

// DeactivateSelf DELETE /api/v1/users/deactivate/
func (c *UsersController) DeactivateSelf(w http.ResponseWriter, r *http.Request) {
	caller, ok := mw.Caller(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	if err := c.service.DeactivateSelf(r.Context(), caller); err != nil {
		httperrors.WriteError(w, httperrors.FromDomain(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
