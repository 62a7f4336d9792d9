package seed

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/store"
)

// Premium matrix columns. Headers are matched case-insensitively.
const (
	colVehicle    = "car_model_id"
	colPlan       = "plan_id"
	colPremium    = "base_premium"
	colDeductible = "deductible"
)

// maxReportedIssues bounds the row errors listed in a validation failure.
const maxReportedIssues = 5

// ReadPremiums parses a premium matrix sheet. The first row is a header
// naming car_model_id, plan_id, base_premium and optionally deductible.
// sheetName selects a sheet; empty uses the first one. Every row is
// checked before anything is returned so a bad file is rejected whole.
func ReadPremiums(path, sheetName string) ([]model.Premium, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: open %s", path)
	}
	sheet, err := pickSheet(f, sheetName)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, apperr.Validation("seed: sheet %q is empty", sheet.Name)
	}

	cols, err := headerColumns(rowStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var (
		out    []model.Premium
		issues []string
	)
	for i, row := range sheet.Rows[1:] {
		cells := rowStrings(row)
		if blankRow(cells) {
			continue
		}
		p, err := parsePremium(cells, cols)
		if err != nil {
			issues = append(issues, fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}
		out = append(out, p)
	}
	if len(issues) > 0 {
		shown := issues
		if len(shown) > maxReportedIssues {
			shown = shown[:maxReportedIssues]
		}
		return nil, apperr.Validation("seed: %d invalid rows in %s: %s", len(issues), path, strings.Join(shown, "; "))
	}
	return out, nil
}

// ImportPremiums reads a premium matrix and upserts it.
func ImportPremiums(ctx context.Context, st store.Store, path, sheetName string) (int64, error) {
	premiums, err := ReadPremiums(path, sheetName)
	if err != nil {
		return 0, err
	}
	fx := Fixture{Premiums: premiums}
	if err := fx.Validate(); err != nil {
		return 0, err
	}
	n, err := st.UpsertPremiums(ctx, premiums)
	if err != nil {
		return 0, eris.Wrap(err, "seed: upsert premiums")
	}
	zap.L().Info("seed: premium matrix imported", zap.String("path", path), zap.Int64("rows", n))
	return n, nil
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, apperr.Validation("seed: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, apperr.Validation("seed: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func headerColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key != "" {
			cols[key] = i
		}
	}
	for _, required := range []string{colVehicle, colPlan, colPremium} {
		if _, ok := cols[required]; !ok {
			return nil, apperr.Validation("seed: header is missing column %q", required)
		}
	}
	return cols, nil
}

func parsePremium(cells []string, cols map[string]int) (model.Premium, error) {
	get := func(col string) string {
		i, ok := cols[col]
		if !ok || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}

	vehicleID, err := strconv.ParseInt(get(colVehicle), 10, 64)
	if err != nil {
		return model.Premium{}, eris.Errorf("%s %q is not an integer", colVehicle, get(colVehicle))
	}
	planID, err := strconv.ParseInt(get(colPlan), 10, 64)
	if err != nil {
		return model.Premium{}, eris.Errorf("%s %q is not an integer", colPlan, get(colPlan))
	}
	premium, err := parseAmount(get(colPremium))
	if err != nil {
		return model.Premium{}, eris.Errorf("%s: %v", colPremium, err)
	}
	deductible := decimal.Zero
	if v := get(colDeductible); v != "" {
		if deductible, err = parseAmount(v); err != nil {
			return model.Premium{}, eris.Errorf("%s: %v", colDeductible, err)
		}
	}
	return model.Premium{VehicleID: vehicleID, PlanID: planID, BasePremium: premium, Deductible: deductible}, nil
}

// parseAmount accepts plain or comma-grouped numbers, e.g. "25,000.00".
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, eris.Errorf("%q is not a number", s)
	}
	return d.Round(2), nil
}

func rowStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		cells[i] = c.String()
	}
	return cells
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
