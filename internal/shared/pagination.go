package shared

import (
	"net/http"
	"strconv"
)

// Page holds limit/offset parameters parsed from a request.
type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads limit/offset query parameters, clamping to sane defaults.
func ParsePage(r *http.Request, defaultLimit, maxLimit int) Page {
	p := Page{Limit: defaultLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			p.Limit = parsed
		}
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			p.Offset = parsed
		}
	}
	return p
}
