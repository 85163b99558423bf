package common

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// IDParam extracts a record id from the named URL parameter. The id must be
// a positive integer.
func IDParam(r *http.Request, paramName string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, paramName))
	if raw == "" {
		return 0, fmt.Errorf("%s cannot be empty", paramName)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", paramName)
	}
	return id, nil
}

// IntQuery parses an optional positive integer query parameter, returning
// fallback when it is absent.
func IntQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s parameter: must be a positive integer", name)
	}
	return n, nil
}
