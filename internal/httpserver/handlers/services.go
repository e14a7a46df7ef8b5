package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/portalstack/portal-server/internal/domain"
	"github.com/portalstack/portal-server/internal/httpserver/deps"
	"github.com/portalstack/portal-server/internal/logger"
	"github.com/portalstack/portal-server/internal/store"
)

// SearchServices handles GET /api/services.
func SearchServices(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := parseSearchQuery(r)

		page, err := d.Manager.Search(r.Context(), q)
		if err != nil {
			d.Logger.Error("service search failed", logger.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func parseSearchQuery(r *http.Request) store.SearchQuery {
	params := r.URL.Query()
	q := store.SearchQuery{
		Name:        strings.TrimSpace(params.Get("name")),
		Description: strings.TrimSpace(params.Get("description")),
		SortBy:      params.Get("sortBy"),
		SortOrder:   strings.ToUpper(params.Get("sortOrder")),
	}
	if v := params.Get("isVisible"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			q.IsVisible = &b
		}
	}
	if v := params.Get("isVisibleByRole"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			q.IsVisibleByRole = &b
		}
	}
	if v, err := strconv.Atoi(params.Get("page")); err == nil {
		q.Page = v
	}
	if v, err := strconv.Atoi(params.Get("limit")); err == nil {
		q.Limit = v
	}
	return q
}

// ServiceDetail handles GET /api/services/{id}.
func ServiceDetail(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		detail, err := d.Manager.GetDetail(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// CreateService handles POST /api/services.
func CreateService(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input domain.CreateService
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_BODY", Message: "malformed request body"})
			return
		}
		input.Name = strings.TrimSpace(input.Name)
		if input.Name == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_BODY", Message: "name is required"})
			return
		}

		if err := d.Manager.Create(r.Context(), input); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, nil)
	}
}

// UpdateService handles PATCH /api/services/{id}.
func UpdateService(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var input domain.UpdateService
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_BODY", Message: "malformed request body"})
			return
		}
		if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_BODY", Message: "name must not be empty"})
			return
		}

		if err := d.Manager.Update(r.Context(), id, input); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	}
}

// DeleteService handles DELETE /api/services/{id}.
func DeleteService(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := d.Manager.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	}
}

// ServiceHealth handles GET /api/services/{id}/health.
func ServiceHealth(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		check, err := d.Manager.CheckHealth(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, check)
	}
}
