package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/danielokoye/vestpool/internal/domain"
)

// Listing endpoints page at most maxPageSize rows; an audit trail or a
// seasoned pool's investment list can grow without bound.
const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// parseListOpts reads limit and offset from the query string, clamping
// limit to maxPageSize. Malformed values fall back to the defaults rather
// than failing the request.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := defaultPageSize
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = min(n, maxPageSize)
	}

	offset := 0
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		offset = n
	}

	return domain.ListOpts{Limit: limit, Offset: offset}
}
