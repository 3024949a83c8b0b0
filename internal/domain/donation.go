package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Donation is a confirmed inbound payment to the watched jar. ID is the bank
// transaction id and acts as the natural key.
type Donation struct {
	ID          string
	Name        string
	Amount      decimal.Decimal
	Description string
	Comment     string
	CounterName string
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64
}

// Time returns the donation timestamp as a time.Time.
func (d Donation) Time() time.Time {
	return time.UnixMilli(d.Timestamp)
}

type donationJSON struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	Comment     string      `json:"comment"`
	CounterName string      `json:"counterName"`
	Timestamp   int64       `json:"timestamp"`
}

// MarshalJSON renders the amount as a plain JSON number.
func (d Donation) MarshalJSON() ([]byte, error) {
	return json.Marshal(donationJSON{
		ID:          d.ID,
		Name:        d.Name,
		Amount:      json.Number(d.Amount.String()),
		Description: d.Description,
		Comment:     d.Comment,
		CounterName: d.CounterName,
		Timestamp:   d.Timestamp,
	})
}

func (d *Donation) UnmarshalJSON(b []byte) error {
	var raw donationJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	amount := decimal.Zero
	if raw.Amount != "" {
		parsed, err := decimal.NewFromString(raw.Amount.String())
		if err != nil {
			return fmt.Errorf("donation amount: %w", err)
		}
		amount = parsed
	}
	*d = Donation{
		ID:          raw.ID,
		Name:        raw.Name,
		Amount:      amount,
		Description: raw.Description,
		Comment:     raw.Comment,
		CounterName: raw.CounterName,
		Timestamp:   raw.Timestamp,
	}
	return nil
}

// AggregateStats is derived from the donation set on demand.
type AggregateStats struct {
	TotalAmount    decimal.Decimal
	TotalCount     int64
	UniqueDonors   int64
	LatestDonation *Donation
}

// TopDonor is a per-name sum of donation amounts.
type TopDonor struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

func (t TopDonor) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name   string      `json:"name"`
		Amount json.Number `json:"amount"`
	}{Name: t.Name, Amount: json.Number(t.Amount.String())})
}

// FromMinorUnits converts kopiyky (or cents) into currency units.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
