package materials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

func refTable() []model.MaterialProfile {
	return []model.MaterialProfile{
		{MaterialID: "MAT_ASPHALT", MaterialName: "Asphalt", Keywords: "asphalt|resurfacing|carriageway", PricePerTonne: 85, CarbonFactor: 95, SourceRef: "ICE-ASP"},
		{MaterialID: "MAT_CONCRETE", MaterialName: "Concrete", Keywords: "concrete|cement", PricePerTonne: 110, CarbonFactor: 130, SourceRef: "ICE-CON"},
		{MaterialID: "MAT_GEN", MaterialName: "Generic Civil Mix", Keywords: "", PricePerTonne: 100, CarbonFactor: 110, SourceRef: "ICE-GEN"},
	}
}

func writeRef(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "material_reference.csv")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

const refCSV = `material_id,material_name,keywords,composite_price_gbp_per_tonne,carbon_factor_kgco2e_per_tonne,ice_source_ref
MAT_ASPHALT,Asphalt,asphalt|resurfacing,85,95,ICE-ASP
MAT_GEN,Generic Civil Mix,,100,110,ICE-GEN
`

func TestLoad(t *testing.T) {
	path := writeRef(t, []byte(refCSV))

	profiles, err := Load(path)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, "MAT_ASPHALT", profiles[0].MaterialID)
	assert.Equal(t, []string{"asphalt", "resurfacing"}, profiles[0].KeywordList())
	assert.InDelta(t, 85, profiles[0].PricePerTonne, 0.001)
	assert.InDelta(t, 95, profiles[0].CarbonFactor, 0.001)
	assert.True(t, profiles[1].IsGeneric())
}

func TestLoad_StripsBOM(t *testing.T) {
	path := writeRef(t, append([]byte{0xEF, 0xBB, 0xBF}, []byte(refCSV)...))

	profiles, err := Load(path)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "MAT_ASPHALT", profiles[0].MaterialID)
}

func TestLoad_Latin1Fallback(t *testing.T) {
	// 0xE9 is é in Latin-1 and invalid as a standalone UTF-8 byte.
	content := "material_id,material_name,keywords,composite_price_gbp_per_tonne,carbon_factor_kgco2e_per_tonne,ice_source_ref\n" +
		"MAT_ASPHALT,Asphalt \xE9,asphalt,85,95,ICE-ASP\n"
	path := writeRef(t, []byte(content))

	profiles, err := Load(path)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Asphalt é", profiles[0].MaterialName)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestMatch_RowOrderEncodesPriority(t *testing.T) {
	// Text matches both asphalt and concrete; the earlier row wins.
	m, ok := Match("Carriageway resurfacing with concrete kerbs", refTable())
	require.True(t, ok)
	assert.Equal(t, "MAT_ASPHALT", m.MaterialID)
}

func TestMatch_CaseInsensitive(t *testing.T) {
	m, ok := Match("SUPPLY OF CEMENT", refTable())
	require.True(t, ok)
	assert.Equal(t, "MAT_CONCRETE", m.MaterialID)
}

func TestMatch_FallsBackToGeneric(t *testing.T) {
	m, ok := Match("drainage improvement scheme", refTable())
	require.True(t, ok)
	assert.Equal(t, model.GenericMaterialID, m.MaterialID)
}

func TestMatch_NoSentinelNoMatch(t *testing.T) {
	table := refTable()[:2] // drop the sentinel
	_, ok := Match("drainage improvement scheme", table)
	assert.False(t, ok)
}

func TestMatch_SentinelNeverMatchedDirectly(t *testing.T) {
	// Even text containing the sentinel's name resolves via keywords first.
	m, ok := Match("asphalt and generic civil mix", refTable())
	require.True(t, ok)
	assert.Equal(t, "MAT_ASPHALT", m.MaterialID)
}
