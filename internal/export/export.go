// Package export writes the pipeline's tables to CSV and XLSX artifacts.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

// FlatRiskRow is the flattened CSV shape of one screened contract. Optional
// numeric fields are pointers so skipped rows export empty cells rather
// than zeros.
type FlatRiskRow struct {
	OCID          string   `csv:"ocid"`
	Title         string   `csv:"title"`
	BuyerName     string   `csv:"buyer_name"`
	CPVCode       string   `csv:"cpv_code"`
	ValueAmount   string   `csv:"value_amount"`
	Currency      string   `csv:"currency"`
	PublishedDate string   `csv:"published_date"`
	Status        string   `csv:"pqe_status"`
	MaterialID    string   `csv:"detected_material_id,omitempty"`
	MaterialName  string   `csv:"detected_material_name,omitempty"`
	PriceRate     *float64 `csv:"applied_price_rate"`
	CarbonFactor  *float64 `csv:"applied_carbon_factor"`
	Tonnes        *float64 `csv:"est_material_tonnes"`
	CO2eTonnes    *float64 `csv:"est_co2e_tonnes"`
	CO2eLow       *float64 `csv:"co2e_range_low"`
	CO2eHigh      *float64 `csv:"co2e_range_high"`
	Category      string   `csv:"risk_category,omitempty"`
	SourceRef     string   `csv:"data_source_ref,omitempty"`
	RefPrice      *float64 `csv:"ref_price"`
	RefFactor     *float64 `csv:"ref_factor"`
}

// Flatten converts a RiskRecord into its exportable row.
func Flatten(rec model.RiskRecord) FlatRiskRow {
	row := FlatRiskRow{
		OCID:          rec.Contract.OCID,
		Title:         rec.Contract.Title,
		BuyerName:     rec.Contract.BuyerName,
		CPVCode:       rec.Contract.CPVCode,
		ValueAmount:   rec.Contract.ValueAmount,
		Currency:      rec.Contract.Currency,
		PublishedDate: rec.Contract.PublishedDate,
		Status:        string(rec.Status),
	}
	if est := rec.Estimate; est != nil {
		row.MaterialID = est.MaterialID
		row.MaterialName = est.MaterialName
		row.PriceRate = ptr(est.PriceRate)
		row.CarbonFactor = ptr(est.CarbonFactor)
		row.Tonnes = ptr(est.Tonnes)
		row.CO2eTonnes = ptr(est.CO2eTonnes)
		row.CO2eLow = ptr(est.CO2eLow)
		row.CO2eHigh = ptr(est.CO2eHigh)
		row.Category = string(est.Category)
		row.SourceRef = est.SourceRef
	}
	if rec.Status == model.StatusSkippedInvalidRef {
		row.RefPrice = ptr(rec.RefPrice)
		row.RefFactor = ptr(rec.RefFactor)
	}
	return row
}

func ptr(v float64) *float64 { return &v }

// WriteContractsCSV writes the contract table to path.
func WriteContractsCSV(path string, records []model.ContractRecord) error {
	if records == nil {
		records = []model.ContractRecord{}
	}
	data, err := csvutil.Marshal(records)
	if err != nil {
		return eris.Wrap(err, "export: marshal contracts csv")
	}
	return writeFile(path, data)
}

// WriteBuyerMapCSV writes the raw-to-canonical buyer map to path.
func WriteBuyerMapCSV(path string, mappings []model.BuyerMapping) error {
	if mappings == nil {
		mappings = []model.BuyerMapping{}
	}
	data, err := csvutil.Marshal(mappings)
	if err != nil {
		return eris.Wrap(err, "export: marshal buyer map csv")
	}
	return writeFile(path, data)
}

// WriteRiskCSV writes the flattened risk table to path, preserving the
// slice order (CO2e descending, skipped rows last).
func WriteRiskCSV(path string, records []model.RiskRecord) error {
	rows := make([]FlatRiskRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Flatten(rec))
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "export: marshal risk csv")
	}
	return writeFile(path, data)
}

var riskHeader = []string{
	"ocid", "title", "buyer_name", "cpv_code", "value_amount", "currency",
	"published_date", "pqe_status", "detected_material_id",
	"detected_material_name", "applied_price_rate", "applied_carbon_factor",
	"est_material_tonnes", "est_co2e_tonnes", "co2e_range_low",
	"co2e_range_high", "risk_category", "data_source_ref",
}

// WriteRiskXLSX writes the risk table as a single-sheet workbook.
func WriteRiskXLSX(path string, records []model.RiskRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Risk")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range riskHeader {
		header.AddCell().SetString(h)
	}

	for _, rec := range records {
		flat := Flatten(rec)
		row := sheet.AddRow()
		row.AddCell().SetString(flat.OCID)
		row.AddCell().SetString(flat.Title)
		row.AddCell().SetString(flat.BuyerName)
		row.AddCell().SetString(flat.CPVCode)
		row.AddCell().SetString(flat.ValueAmount)
		row.AddCell().SetString(flat.Currency)
		row.AddCell().SetString(flat.PublishedDate)
		row.AddCell().SetString(flat.Status)
		row.AddCell().SetString(flat.MaterialID)
		row.AddCell().SetString(flat.MaterialName)
		addFloatCell(row, flat.PriceRate)
		addFloatCell(row, flat.CarbonFactor)
		addFloatCell(row, flat.Tonnes)
		addFloatCell(row, flat.CO2eTonnes)
		addFloatCell(row, flat.CO2eLow)
		addFloatCell(row, flat.CO2eHigh)
		row.AddCell().SetString(flat.Category)
		row.AddCell().SetString(flat.SourceRef)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: mkdir for %s", path)
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addFloatCell(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v != nil {
		cell.SetFloatWithFormat(*v, "0.00")
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: mkdir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// ArtifactPaths derives the default artifact file names inside dir.
func ArtifactPaths(dir string) (contracts, buyerMap, riskCSV, riskXLSX string) {
	return filepath.Join(dir, "contracts.csv"),
		filepath.Join(dir, "buyer_map.csv"),
		filepath.Join(dir, "risk_screened.csv"),
		filepath.Join(dir, "risk_screened.xlsx")
}

// PreviewTop returns up to n formatted lines summarizing the highest-CO2e
// rows, assuming records are already sorted.
func PreviewTop(records []model.RiskRecord, n int) []string {
	var lines []string
	for _, rec := range records {
		if len(lines) >= n {
			break
		}
		co2e, ok := rec.CO2e()
		if !ok {
			break
		}
		lines = append(lines, fmt.Sprintf("%-40.40s  %-50.50s  %10.2f t  %s",
			rec.Contract.BuyerName, rec.Contract.Title, co2e,
			rec.Estimate.MaterialName))
	}
	return lines
}
