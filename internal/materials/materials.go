// Package materials loads the material reference table and matches contract
// text against its keyword triggers.
package materials

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads the reference table from a CSV file. The file is decoded as
// UTF-8 (with or without BOM) and falls back to Latin-1 when the bytes are
// not valid UTF-8. Row order is preserved: it encodes match specificity.
func Load(path string) ([]model.MaterialProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "materials: read %s", path)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, eris.Wrapf(err, "materials: decode %s as latin-1", path)
		}
		data = decoded
	}

	var profiles []model.MaterialProfile
	if err := csvutil.Unmarshal(data, &profiles); err != nil {
		return nil, eris.Wrapf(err, "materials: parse %s", path)
	}
	return profiles, nil
}

// Match scans the reference table in row order, skipping the generic
// sentinel, and returns the first profile with a keyword substring hit in
// the lowercased text. Without a hit it returns the sentinel profile when
// present; the boolean is false only when no row matched and no sentinel
// exists.
func Match(text string, profiles []model.MaterialProfile) (model.MaterialProfile, bool) {
	lower := strings.ToLower(text)

	for _, p := range profiles {
		if p.IsGeneric() {
			continue
		}
		for _, k := range p.KeywordList() {
			if strings.Contains(lower, k) {
				return p, true
			}
		}
	}

	for _, p := range profiles {
		if p.IsGeneric() {
			return p, true
		}
	}
	return model.MaterialProfile{}, false
}
