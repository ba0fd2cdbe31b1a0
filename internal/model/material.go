package model

import "strings"

// GenericMaterialID is the reference-table sentinel for the generic fallback
// profile. Exactly one row of the table carries it, and the matcher consults
// it only after every specific row has failed to match.
const GenericMaterialID = "MAT_GEN"

// MaterialProfile is one row of the material reference table. Row order in
// the table encodes specificity: more specific materials must precede generic
// ones, with the MAT_GEN sentinel last.
type MaterialProfile struct {
	MaterialID    string  `json:"material_id" csv:"material_id"`
	MaterialName  string  `json:"material_name" csv:"material_name"`
	Keywords      string  `json:"keywords" csv:"keywords"` // pipe-delimited lowercase triggers
	PricePerTonne float64 `json:"price_per_tonne" csv:"composite_price_gbp_per_tonne"`
	CarbonFactor  float64 `json:"carbon_factor" csv:"carbon_factor_kgco2e_per_tonne"`
	SourceRef     string  `json:"source_ref" csv:"ice_source_ref"`
}

// IsGeneric reports whether the profile is the generic fallback sentinel.
func (m MaterialProfile) IsGeneric() bool {
	return strings.EqualFold(strings.TrimSpace(m.MaterialID), GenericMaterialID)
}

// KeywordList splits the pipe-delimited keyword column into trimmed,
// lowercased, non-empty triggers.
func (m MaterialProfile) KeywordList() []string {
	parts := strings.Split(m.Keywords, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		k := strings.ToLower(strings.TrimSpace(p))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
