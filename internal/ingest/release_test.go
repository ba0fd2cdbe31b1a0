package ingest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

func TestNormalizeCPV(t *testing.T) {
	assert.Equal(t, "452100002", normalizeCPV("45210000-2"))
	assert.Equal(t, "45000000", normalizeCPV("45000000"))
	assert.Equal(t, model.UnknownCPV, normalizeCPV(""))
	assert.Equal(t, model.UnknownCPV, normalizeCPV("no digits here"))
}

func mustRelease(t *testing.T, raw string) release {
	t.Helper()
	var rel release
	require.NoError(t, json.Unmarshal([]byte(raw), &rel))
	return rel
}

func TestExtractCPV_TenderObject(t *testing.T) {
	rel := mustRelease(t, `{"tender":{"classification":{"id":"45210000-2"}}}`)
	assert.Equal(t, "452100002", extractCPV(rel))
}

func TestExtractCPV_TenderList(t *testing.T) {
	rel := mustRelease(t, `{"tender":{"classification":[{"id":""},{"id":"71300000"}]}}`)
	assert.Equal(t, "71300000", extractCPV(rel))
}

func TestExtractCPV_ReleaseFallback(t *testing.T) {
	rel := mustRelease(t, `{"tender":{},"classification":{"id":"45233120"}}`)
	assert.Equal(t, "45233120", extractCPV(rel))
}

func TestExtractCPV_Missing(t *testing.T) {
	rel := mustRelease(t, `{"tender":{"title":"x"}}`)
	assert.Equal(t, model.UnknownCPV, extractCPV(rel))
}

func TestExtractValue_TenderFirst(t *testing.T) {
	rel := mustRelease(t, `{"tender":{"value":{"amount":125000.5,"currency":"GBP"}},"value":{"amount":1,"currency":"EUR"}}`)
	amount, currency := extractValue(rel)
	assert.InDelta(t, 125000.5, amount, 0.001)
	assert.Equal(t, "GBP", currency)
}

func TestExtractValue_ReleaseFallback(t *testing.T) {
	rel := mustRelease(t, `{"tender":{},"value":{"amount":42000,"currency":"EUR"}}`)
	amount, currency := extractValue(rel)
	assert.InDelta(t, 42000, amount, 0.001)
	assert.Equal(t, "EUR", currency)
}

func TestExtractValue_DefaultsToZeroGBP(t *testing.T) {
	rel := mustRelease(t, `{"tender":{"value":{"currency":"USD"}}}`)
	amount, currency := extractValue(rel)
	assert.Zero(t, amount)
	assert.Equal(t, "GBP", currency)
}

func TestExtractValue_MissingCurrencyDefaults(t *testing.T) {
	rel := mustRelease(t, `{"tender":{"value":{"amount":100}}}`)
	amount, currency := extractValue(rel)
	assert.InDelta(t, 100, amount, 0.001)
	assert.Equal(t, "GBP", currency)
}

func TestExtractBuyerCountry(t *testing.T) {
	rel := mustRelease(t, `{
		"buyer":{"id":"b-1","name":"Council"},
		"parties":[
			{"id":"s-1","address":{"countryName":"France"}},
			{"id":"b-1","address":{"countryName":"Wales"}}
		]}`)
	assert.Equal(t, "Wales", extractBuyerCountry(rel))
}

func TestExtractBuyerCountry_DefaultGB(t *testing.T) {
	rel := mustRelease(t, `{"buyer":{"id":"b-1"},"parties":[{"id":"other"}]}`)
	assert.Equal(t, "GB", extractBuyerCountry(rel))

	rel = mustRelease(t, `{}`)
	assert.Equal(t, "GB", extractBuyerCountry(rel))
}

func TestHasPrefix(t *testing.T) {
	prefixes := []string{"45", "71"}
	assert.True(t, HasPrefix("452100002", prefixes))
	assert.True(t, HasPrefix("71300000", prefixes))
	assert.False(t, HasPrefix("98000000", prefixes))
	assert.False(t, HasPrefix("452100002", nil))
}
