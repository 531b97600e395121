package polymarket

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// flexBool unmarshals from a JSON bool or a "true"/"false" string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexDecimal unmarshals from a JSON number or numeric string. Empty strings
// and null leave it unset.
type flexDecimal struct {
	decimal.NullDecimal
}

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		f.Valid = false
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	f.Decimal, f.Valid = d, true
	return nil
}

// stringList decodes Gamma's JSON-encoded string arrays, e.g.
// "[\"Yes\",\"No\"]", and also accepts a plain JSON array.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var direct []string
	if err := json.Unmarshal(data, &direct); err == nil {
		*l = direct
		return nil
	}
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	if encoded == "" {
		*l = nil
		return nil
	}
	return json.Unmarshal([]byte(encoded), (*[]string)(l))
}

// APIMarket is a market as returned by the Gamma API.
type APIMarket struct {
	ID            string      `json:"id"`
	Question      string      `json:"question"`
	Description   string      `json:"description"`
	ConditionID   string      `json:"conditionId"`
	Slug          string      `json:"slug"`
	Active        flexBool    `json:"active"`
	Closed        bool        `json:"closed"`
	Outcomes      stringList  `json:"outcomes"`
	OutcomePrices stringList  `json:"outcomePrices"`
	ClobTokenIDs  stringList  `json:"clobTokenIds"`
	Volume        flexDecimal `json:"volume"`
	EndDate       string      `json:"endDate"`
	UpdatedAt     string      `json:"updatedAt"`
}

// ToDomainMarket converts the API shape to a domain.Market.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ID:          m.ID,
		Question:    m.Question,
		Description: m.Description,
		Outcomes:    []string(m.Outcomes),
		Source:      domain.VenuePolymarket,
	}
	if m.Volume.Valid {
		v := m.Volume.Decimal
		dm.Volume = &v
	}
	if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
		dm.EndTime = &t
	}
	return dm
}

// ToQuotes pairs each outcome with its price and CLOB token. Outcomes with a
// missing or unparseable price are skipped. Quotes are stamped with now, the
// time the prices were read; updatedAt tracks metadata edits only.
func (m *APIMarket) ToQuotes(now time.Time) []domain.Quote {
	quotes := make([]domain.Quote, 0, len(m.Outcomes))
	for i, outcome := range m.Outcomes {
		if i >= len(m.OutcomePrices) {
			break
		}
		odds, err := decimal.NewFromString(m.OutcomePrices[i])
		if err != nil {
			continue
		}
		q := domain.Quote{
			MarketID:  m.ID,
			Outcome:   outcome,
			Odds:      odds,
			Source:    domain.VenuePolymarket,
			Timestamp: now.UTC(),
		}
		if i < len(m.ClobTokenIDs) {
			q.Asset = m.ClobTokenIDs[i]
		}
		quotes = append(quotes, q)
	}
	return quotes
}
