package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
)

// QueryInt reads an optional integer query parameter bounded to [lo, hi].
func QueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	details := map[string]any{"field": key, "min": lo, "max": hi}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a whole number").WithDetails(details)
	}
	if value < lo || value > hi {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" is out of range").WithDetails(details)
	}
	return value, nil
}
