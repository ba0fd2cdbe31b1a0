package model

// ScreenStatus records the outcome of screening a single contract. Every
// input contract yields exactly one RiskRecord; skips are statuses, never
// dropped rows.
type ScreenStatus string

const (
	StatusCalculated        ScreenStatus = "CALCULATED"
	StatusSkippedLowValue   ScreenStatus = "SKIPPED_LOW_VALUE"
	StatusSkippedNoRef      ScreenStatus = "SKIPPED_NO_REF"
	StatusSkippedInvalidRef ScreenStatus = "SKIPPED_INVALID_REF"
)

// RiskCategory is the ordinal tier assigned to an estimated CO2e magnitude.
type RiskCategory string

const (
	RiskLow      RiskCategory = "LOW"
	RiskMedium   RiskCategory = "MEDIUM"
	RiskHigh     RiskCategory = "HIGH"
	RiskCritical RiskCategory = "CRITICAL"
)

// Estimate holds the derived carbon fields attached to a CALCULATED record.
// All values are rounded to 2 decimal places at creation.
type Estimate struct {
	MaterialID   string       `json:"detected_material_id"`
	MaterialName string       `json:"detected_material_name"`
	PriceRate    float64      `json:"applied_price_rate"`
	CarbonFactor float64      `json:"applied_carbon_factor"`
	Tonnes       float64      `json:"estimated_tonnes"`
	CO2eTonnes   float64      `json:"estimated_co2e_tonnes"`
	CO2eLow      float64      `json:"co2e_range_low"`
	CO2eHigh     float64      `json:"co2e_range_high"`
	Category     RiskCategory `json:"risk_category"`
	SourceRef    string       `json:"data_source_ref"`
}

// RiskRecord is a ContractRecord extended with screening output. Estimate is
// non-nil only when Status is CALCULATED. RefPrice and RefFactor retain the
// raw reference values for SKIPPED_INVALID_REF diagnostics.
type RiskRecord struct {
	Contract  ContractRecord `json:"contract"`
	Status    ScreenStatus   `json:"pqe_status"`
	Estimate  *Estimate      `json:"estimate,omitempty"`
	RefPrice  float64        `json:"ref_price,omitempty"`
	RefFactor float64        `json:"ref_factor,omitempty"`
}

// CO2e returns the estimated CO2e tonnes and whether a value was computed.
// Skipped records report no value and sort after all computed ones.
func (r RiskRecord) CO2e() (float64, bool) {
	if r.Estimate == nil {
		return 0, false
	}
	return r.Estimate.CO2eTonnes, true
}
