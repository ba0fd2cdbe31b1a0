// Package risk estimates embodied-carbon exposure for procurement contracts
// and assigns each a risk tier.
package risk

import (
	"math"
	"regexp"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/materials"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

// Tier thresholds in estimated CO2e tonnes.
const (
	criticalThreshold = 1000
	highThreshold     = 250
	mediumThreshold   = 50
)

var nonNumeric = regexp.MustCompile(`[^\d.]`)

// ParseSpend extracts a numeric spend from messy currency text such as
// "£4,999.50". Unparsable or missing values resolve to 0, never an error.
func ParseSpend(raw string) float64 {
	clean := nonNumeric.ReplaceAllString(raw, "")
	if clean == "" {
		return 0
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v
}

// Categorize maps estimated CO2e tonnes to a risk tier.
func Categorize(co2eTonnes float64) model.RiskCategory {
	switch {
	case co2eTonnes >= criticalThreshold:
		return model.RiskCritical
	case co2eTonnes >= highThreshold:
		return model.RiskHigh
	case co2eTonnes >= mediumThreshold:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// Engine screens contracts against the material reference table.
type Engine struct {
	profiles []model.MaterialProfile
	minSpend float64
}

// NewEngine creates an engine with the given reference table and
// minimum-spend gate.
func NewEngine(profiles []model.MaterialProfile, minSpend float64) *Engine {
	return &Engine{profiles: profiles, minSpend: minSpend}
}

// Screen produces exactly one RiskRecord per input contract and returns them
// sorted by estimated CO2e descending, skipped records last. Screening never
// fails a contract: reference-data gaps become skip statuses.
func (e *Engine) Screen(contracts []model.ContractRecord) []model.RiskRecord {
	log := zap.L().With(zap.String("component", "risk"))

	out := make([]model.RiskRecord, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, e.screenOne(c))
	}
	Sort(out)

	var calculated int
	for _, r := range out {
		if r.Status == model.StatusCalculated {
			calculated++
		}
	}
	log.Info("screening complete",
		zap.Int("contracts", len(contracts)),
		zap.Int("calculated", calculated),
		zap.Int("skipped", len(contracts)-calculated),
	)
	return out
}

func (e *Engine) screenOne(c model.ContractRecord) model.RiskRecord {
	spend := ParseSpend(c.ValueAmount)
	if spend < e.minSpend {
		return model.RiskRecord{Contract: c, Status: model.StatusSkippedLowValue}
	}

	mat, ok := materials.Match(c.Title+" "+c.Description, e.profiles)
	if !ok {
		return model.RiskRecord{Contract: c, Status: model.StatusSkippedNoRef}
	}

	if mat.PricePerTonne <= 0 || mat.CarbonFactor <= 0 {
		return model.RiskRecord{
			Contract:  c,
			Status:    model.StatusSkippedInvalidRef,
			RefPrice:  mat.PricePerTonne,
			RefFactor: mat.CarbonFactor,
		}
	}

	tonnes := spend / mat.PricePerTonne
	co2eTonnes := tonnes * mat.CarbonFactor / 1000

	return model.RiskRecord{
		Contract: c,
		Status:   model.StatusCalculated,
		Estimate: &model.Estimate{
			MaterialID:   mat.MaterialID,
			MaterialName: mat.MaterialName,
			PriceRate:    mat.PricePerTonne,
			CarbonFactor: mat.CarbonFactor,
			Tonnes:       round2(tonnes),
			CO2eTonnes:   round2(co2eTonnes),
			CO2eLow:      round2(co2eTonnes * 0.75),
			CO2eHigh:     round2(co2eTonnes * 1.25),
			Category:     Categorize(co2eTonnes),
			SourceRef:    mat.SourceRef,
		},
	}
}

// Sort orders records by estimated CO2e descending; records without a
// computed value sort after all computed ones, keeping their relative order.
func Sort(records []model.RiskRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		vi, oki := records[i].CO2e()
		vj, okj := records[j].CO2e()
		if oki != okj {
			return oki
		}
		return vi > vj
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
