package handlers

import (
	"errors"
	"net/http"

	"jarfeed/internal/domain"
	"jarfeed/internal/monobank"
)

// ListJars lists every jar from the cached client info.
func (a *App) ListJars(w http.ResponseWriter, r *http.Request) {
	snap, err := a.jarSnapshot()
	if err != nil {
		a.jarError(w, err)
		return
	}
	views := make([]jarView, 0, len(snap.Info.Jars))
	for _, j := range snap.Info.Jars {
		views = append(views, newJarView(j))
	}
	age := snap.Age(a.clock())
	a.json(w, http.StatusOK, map[string]any{
		"jars":     views,
		"cached":   true,
		"stale":    age >= a.Jars.TTL(),
		"cacheAge": age.Milliseconds(),
	})
}

// TargetJar returns the jar the poller is watching.
func (a *App) TargetJar(w http.ResponseWriter, r *http.Request) {
	snap, err := a.jarSnapshot()
	if err != nil {
		a.jarError(w, err)
		return
	}
	var title, id string
	if a.JarTarget != nil {
		title, id = a.JarTarget()
	}
	jar, err := snap.Info.FindJar(id, title)
	if err != nil {
		a.Logger.Warn().Err(err).Str("event", "jar_not_found").Str("jar_title", title).Msg("bank api")
		a.jarError(w, err)
		return
	}
	age := snap.Age(a.clock())
	a.json(w, http.StatusOK, struct {
		jarView
		Cached   bool  `json:"cached"`
		Stale    bool  `json:"stale"`
		CacheAge int64 `json:"cacheAge"`
	}{newJarView(jar), true, age >= a.Jars.TTL(), age.Milliseconds()})
}

// jarSnapshot returns the cached client info or the reason none can be served.
func (a *App) jarSnapshot() (monobank.Snapshot, error) {
	if a.Jars == nil {
		return monobank.Snapshot{}, domain.ErrNotConfigured
	}
	if snap, ok := a.Jars.Peek(); ok {
		return snap, nil
	}
	if err := a.Jars.LastError(); err != nil {
		return monobank.Snapshot{}, err
	}
	return monobank.Snapshot{}, domain.ErrNoClientInfo
}

func (a *App) jarError(w http.ResponseWriter, err error) {
	var apiErr *domain.ExternalAPIError
	switch {
	case errors.Is(err, domain.ErrJarNotFound):
		a.error(w, http.StatusNotFound, "Jar not found")
	case errors.Is(err, domain.ErrNoClientInfo):
		a.json(w, http.StatusServiceUnavailable, map[string]any{
			"success":    false,
			"error":      "Jar data is not loaded yet",
			"retryAfter": int(a.Jars.TTL().Seconds()),
		})
	case errors.Is(err, domain.ErrRateLimited):
		a.json(w, http.StatusTooManyRequests, map[string]any{
			"success":    false,
			"error":      "Rate limit exceeded. Please wait before next request.",
			"retryAfter": 60,
		})
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, domain.ErrNotConfigured):
		a.error(w, http.StatusInternalServerError, "MONO_TOKEN not configured")
	case errors.As(err, &apiErr) && apiErr.Status == 0:
		a.error(w, http.StatusInternalServerError, "Network error")
	default:
		a.error(w, http.StatusInternalServerError, "Monobank API error")
	}
}
