package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"jarfeed/internal/domain"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type validationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func parseLimit(q url.Values) (int, *domain.ValidationError) {
	raw := strings.TrimSpace(q.Get("limit"))
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Field: "limit", Message: `"limit" must be an integer`, Value: raw}
	}
	if n < 1 || n > maxLimit {
		return 0, &domain.ValidationError{Field: "limit", Message: `"limit" must be between 1 and 100`, Value: raw}
	}
	return n, nil
}

func parseOptionalBool(q url.Values, field string) (bool, *domain.ValidationError) {
	raw := strings.TrimSpace(q.Get(field))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &domain.ValidationError{Field: field, Message: `"` + field + `" must be a boolean`, Value: raw}
	}
	return v, nil
}

func (a *App) validationFailed(w http.ResponseWriter, r *http.Request, errs ...*domain.ValidationError) {
	details := make([]validationDetail, 0, len(errs))
	for _, e := range errs {
		details = append(details, validationDetail{Field: e.Field, Message: e.Message, Value: e.Value})
	}
	a.Logger.Warn().Str("endpoint", r.URL.Path).Interface("errors", details).Msg("api validation error")
	a.json(w, http.StatusBadRequest, map[string]any{
		"success": false,
		"error":   "Validation failed",
		"details": details,
	})
}
