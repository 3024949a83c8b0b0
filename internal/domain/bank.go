package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Jar is a goal sub-account as reported by the bank client-info endpoint.
// Balance and Goal are in minor units.
type Jar struct {
	ID           string `json:"id"`
	SendID       string `json:"sendId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	CurrencyCode int    `json:"currencyCode"`
	Balance      int64  `json:"balance"`
	Goal         int64  `json:"goal"`
}

// BalanceUnits returns the balance in currency units.
func (j Jar) BalanceUnits() decimal.Decimal { return FromMinorUnits(j.Balance) }

// GoalUnits returns the goal in currency units.
func (j Jar) GoalUnits() decimal.Decimal { return FromMinorUnits(j.Goal) }

// Progress returns the balance as a percentage of the goal, rounded to one
// decimal place. A jar without a goal reports zero.
func (j Jar) Progress() string {
	if j.Goal <= 0 {
		return "0.0"
	}
	pct := decimal.NewFromInt(j.Balance).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(j.Goal))
	return pct.StringFixed(1)
}

// ClientInfo is the opaque client-info payload; only jars are interpreted.
type ClientInfo struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
	Jars     []Jar  `json:"jars"`
}

// FindJar looks a jar up by id first, then by exact title. A miss wraps
// ErrJarNotFound.
func (c *ClientInfo) FindJar(id, title string) (Jar, error) {
	if c != nil {
		if id = strings.TrimSpace(id); id != "" {
			for _, jar := range c.Jars {
				if jar.ID == id {
					return jar, nil
				}
			}
		}
		for _, jar := range c.Jars {
			if jar.Title == title {
				return jar, nil
			}
		}
	}
	return Jar{}, fmt.Errorf("%w: title %q id %q", ErrJarNotFound, title, id)
}

// Transaction is a raw statement item. Amount is in minor units, Time in
// Unix seconds.
type Transaction struct {
	ID              string `json:"id"`
	Time            int64  `json:"time"`
	Description     string `json:"description"`
	Comment         string `json:"comment"`
	Amount          int64  `json:"amount"`
	OperationAmount int64  `json:"operationAmount"`
	CurrencyCode    int    `json:"currencyCode"`
	Balance         int64  `json:"balance"`
	CounterEdrpou   string `json:"counterEdrpou"`
	CounterIban     string `json:"counterIban"`
	CounterName     string `json:"counterName"`
}
