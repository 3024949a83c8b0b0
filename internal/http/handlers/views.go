package handlers

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"jarfeed/internal/domain"
)

var timeLayouts = map[string]string{
	"uk": "02.01.2006, 15:04:05",
	"en": "1/2/2006, 3:04:05 PM",
}

// formatTime renders ts the way the overlay shows it for locale.
func formatTime(ts int64, locale string, loc *time.Location) string {
	layout, ok := timeLayouts[locale]
	if !ok {
		layout = timeLayouts["uk"]
	}
	return time.UnixMilli(ts).In(loc).Format(layout)
}

type donationView struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	Comment     string      `json:"comment"`
	CounterName string      `json:"counterName"`
	Timestamp   int64       `json:"timestamp"`
	Time        string      `json:"time"`
}

func newDonationView(d domain.Donation, locale string, loc *time.Location) donationView {
	return donationView{
		ID:          d.ID,
		Name:        d.Name,
		Amount:      number(d.Amount),
		Description: d.Description,
		Comment:     d.Comment,
		CounterName: d.CounterName,
		Timestamp:   d.Timestamp,
		Time:        formatTime(d.Timestamp, locale, loc),
	}
}

type statsView struct {
	TotalAmount    json.Number   `json:"totalAmount"`
	TotalCount     int64         `json:"totalCount"`
	UniqueDonors   int64         `json:"uniqueDonors"`
	LatestDonation *donationView `json:"latestDonation"`
	AverageAmount  *json.Number  `json:"averageAmount,omitempty"`
}

type jarView struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Balance     json.Number `json:"balance"`
	Goal        json.Number `json:"goal"`
	Progress    string      `json:"progress"`
	SendID      string      `json:"sendId"`
}

func newJarView(j domain.Jar) jarView {
	return jarView{
		ID:          j.ID,
		Title:       j.Title,
		Description: j.Description,
		Balance:     number(j.BalanceUnits()),
		Goal:        number(j.GoalUnits()),
		Progress:    j.Progress(),
		SendID:      j.SendID,
	}
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
