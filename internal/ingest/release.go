package ingest

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

// noticePage is one page of the catalog's OCDS search response.
type noticePage struct {
	Releases []release `json:"releases"`
	Links    struct {
		Next string `json:"next"`
	} `json:"links"`
}

// release is a single OCDS release. Classification blocks vary between a
// single object and a list depending on the publisher, so they are held raw
// and decoded on demand.
type release struct {
	OCID           string          `json:"ocid"`
	Date           string          `json:"date"`
	Tender         *tender         `json:"tender"`
	Buyer          *party          `json:"buyer"`
	Parties        []party         `json:"parties"`
	Classification json.RawMessage `json:"classification"`
	Value          *monetaryValue  `json:"value"`
}

type tender struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Status         string          `json:"status"`
	Classification json.RawMessage `json:"classification"`
	Value          *monetaryValue  `json:"value"`
}

type party struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address *struct {
		CountryName string `json:"countryName"`
	} `json:"address"`
}

type monetaryValue struct {
	Amount   *float64 `json:"amount"`
	Currency string   `json:"currency"`
}

type classificationBlock struct {
	ID string `json:"id"`
}

// normalizeCPV reduces a raw classification id to its digits, or UnknownCPV
// when nothing remains.
func normalizeCPV(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return model.UnknownCPV
	}
	return b.String()
}

// classificationID decodes a raw classification block that may be a single
// object or a list of objects, returning the first non-empty id.
func classificationID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single classificationBlock
	if err := json.Unmarshal(raw, &single); err == nil && single.ID != "" {
		return single.ID
	}
	var list []classificationBlock
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, c := range list {
			if c.ID != "" {
				return c.ID
			}
		}
	}
	return ""
}

// extractCPV resolves the classification code for a release: the tender's
// classification first (object or list), then the release-level block.
func extractCPV(rel release) string {
	if rel.Tender != nil {
		if id := classificationID(rel.Tender.Classification); id != "" {
			return normalizeCPV(id)
		}
	}
	if id := classificationID(rel.Classification); id != "" {
		return normalizeCPV(id)
	}
	return model.UnknownCPV
}

// extractValue returns the first structured amount found on the tender or
// the release, defaulting to zero GBP when neither carries one.
func extractValue(rel release) (float64, string) {
	candidates := []*monetaryValue{}
	if rel.Tender != nil {
		candidates = append(candidates, rel.Tender.Value)
	}
	candidates = append(candidates, rel.Value)

	for _, v := range candidates {
		if v == nil || v.Amount == nil {
			continue
		}
		currency := v.Currency
		if currency == "" {
			currency = "GBP"
		}
		return *v.Amount, currency
	}
	return 0, "GBP"
}

// extractBuyerCountry finds the buyer's country from the parties block,
// defaulting to GB.
func extractBuyerCountry(rel release) string {
	country := "GB"
	if rel.Buyer == nil {
		return country
	}
	for _, p := range rel.Parties {
		if p.ID == rel.Buyer.ID && p.Address != nil && p.Address.CountryName != "" {
			country = p.Address.CountryName
		}
	}
	return country
}
