package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/pizza-nz/staff-ordering/internal/api"
	"github.com/pizza-nz/staff-ordering/internal/apperr"
	"github.com/pizza-nz/staff-ordering/internal/middleware"
	"github.com/pizza-nz/staff-ordering/internal/models"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, v any) {
	api.JSON(w, status, v)
}

// decodeJSON reads a single JSON object from the request body, rejecting
// unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.InvalidRequest("request body is required")
		}
		return apperr.InvalidRequest("invalid request body: %s", err.Error())
	}
	return nil
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, apperr.InvalidRequest("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// queryPage reads the limit and offset query parameters. Missing values are
// left at zero for the service to default.
func queryPage(r *http.Request) (models.Page, error) {
	limit, err := queryInt(r, "limit", 1)
	if err != nil {
		return models.Page{}, err
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		return models.Page{}, err
	}
	return models.Page{Limit: limit, Offset: offset}, nil
}

func queryInt(r *http.Request, name string, min int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return 0, apperr.InvalidRequest("%s must be an integer of at least %d", name, min)
	}
	return n, nil
}

// principal returns the authenticated principal stored by the auth middleware.
func principal(r *http.Request) (models.Principal, error) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		return models.Principal{}, apperr.Unauthorized("authentication required")
	}
	return p, nil
}
