package handlers

import (
	"math/rand"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"jarfeed/internal/domain"
	"jarfeed/internal/middleware"
)

func (a *App) DonationStats(w http.ResponseWriter, r *http.Request) {
	detailed, verr := parseOptionalBool(r.URL.Query(), "detailed")
	if verr != nil {
		a.validationFailed(w, r, verr)
		return
	}
	res := a.Queries.Stats(r.Context())
	locale := middleware.LocaleFromContext(r.Context())

	view := statsView{
		TotalAmount:  number(res.Data.TotalAmount),
		TotalCount:   res.Data.TotalCount,
		UniqueDonors: res.Data.UniqueDonors,
	}
	if d := res.Data.LatestDonation; d != nil {
		v := newDonationView(*d, locale, a.location())
		view.LatestDonation = &v
	}
	if detailed {
		avg := decimal.Zero
		if res.Data.TotalCount > 0 {
			avg = res.Data.TotalAmount.Div(decimal.NewFromInt(res.Data.TotalCount)).Round(2)
		}
		n := number(avg)
		view.AverageAmount = &n
	}
	a.json(w, http.StatusOK, envelope(view, map[string]any{"source": res.Source}))
}

func (a *App) DonationsTop(w http.ResponseWriter, r *http.Request) {
	limit, verr := parseLimit(r.URL.Query())
	if verr != nil {
		a.validationFailed(w, r, verr)
		return
	}
	res := a.Queries.Top(r.Context(), limit)
	donors := res.Data
	if donors == nil {
		donors = []domain.TopDonor{}
	}
	a.json(w, http.StatusOK, envelope(donors, map[string]any{"limit": limit, "source": res.Source}))
}

func (a *App) DonationsRecent(w http.ResponseWriter, r *http.Request) {
	limit, verr := parseLimit(r.URL.Query())
	if verr != nil {
		a.validationFailed(w, r, verr)
		return
	}
	res := a.Queries.Recent(r.Context(), limit)
	locale := middleware.LocaleFromContext(r.Context())
	views := make([]donationView, 0, len(res.Data))
	for _, d := range res.Data {
		views = append(views, newDonationView(d, locale, a.location()))
	}
	a.json(w, http.StatusOK, envelope(views, map[string]any{"limit": limit, "source": res.Source}))
}

func (a *App) DonationLatest(w http.ResponseWriter, r *http.Request) {
	res := a.Queries.Latest(r.Context())
	var view *donationView
	if res.Data != nil {
		v := newDonationView(*res.Data, middleware.LocaleFromContext(r.Context()), a.location())
		view = &v
	}
	a.json(w, http.StatusOK, envelope(view, map[string]any{"source": res.Source}))
}

type testDonationText struct {
	name    string
	comment string
	prefix  string
}

var testDonationTexts = map[string]testDonationText{
	"uk": {name: "Тестовий Донатер", comment: "Тримайте на новий об'єктив! 📸", prefix: "Поповнення "},
	"en": {name: "Test Donor", comment: "Here is something for a new lens! 📸", prefix: "Top-up: "},
}

// TestDonation broadcasts a synthetic donation. It is never stored or counted.
func (a *App) TestDonation(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	text, ok := testDonationTexts[locale]
	if !ok {
		text = testDonationTexts["uk"]
	}
	title := ""
	if a.JarTarget != nil {
		title, _ = a.JarTarget()
	}
	d := domain.Donation{
		ID:          "test_" + uuid.NewString(),
		Name:        text.name,
		Amount:      decimal.NewFromInt(int64(rand.Intn(500) + 50)),
		Description: text.prefix + title,
		Comment:     text.comment,
		CounterName: "ПриватБанк",
		Timestamp:   a.clock().UnixMilli(),
	}
	a.Ingest.IngestTest(r.Context(), d)
	a.json(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    newDonationView(d, locale, a.location()),
		"note":    "Test donation - not counted in stats",
	})
}

func envelope(data any, meta map[string]any) map[string]any {
	body := map[string]any{"success": true, "data": data}
	if len(meta) > 0 {
		body["meta"] = meta
	}
	return body
}
