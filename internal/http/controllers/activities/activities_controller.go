// Package activities contiene los controllers de /api/v1/activities.
package activities

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/usersvc/internal/directory"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/http/dto"
	httperrors "github.com/dropDatabas3/usersvc/internal/http/errors"
	"github.com/dropDatabas3/usersvc/internal/http/helpers"
	mw "github.com/dropDatabas3/usersvc/internal/http/middlewares"
)

type Service interface {
	ListActivities(ctx context.Context, c directory.Caller, q directory.ActivityQuery) (*directory.Page[repository.ActivityRecord], error)
	GetActivity(ctx context.Context, c directory.Caller, id string) (*repository.ActivityRecord, error)
}

type ActivitiesController struct {
	service Service
}

func NewActivitiesController(service Service) *ActivitiesController {
	return &ActivitiesController{service: service}
}

// List GET /api/v1/activities/?action=&result=&limit=&offset=
func (c *ActivitiesController) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := mw.Caller(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	limit, ok1 := helpers.QueryInt(r, "limit", 0)
	offset, ok2 := helpers.QueryInt(r, "offset", 0)
	if !ok1 || !ok2 {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("limit and offset must be non-negative integers"))
		return
	}

	q := r.URL.Query()
	page, err := c.service.ListActivities(r.Context(), caller, directory.ActivityQuery{
		Action: q.Get("action"),
		Result: q.Get("result"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		httperrors.WriteError(w, httperrors.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ActivityList(page.Items, page.Total))
}

// Get GET /api/v1/activities/{id}/
func (c *ActivitiesController) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := mw.Caller(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	rec, err := c.service.GetActivity(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		httperrors.WriteError(w, httperrors.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ActivityFrom(rec))
}
