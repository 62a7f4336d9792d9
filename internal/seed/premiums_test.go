package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/store/storetest"
)

func createWorkbook(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet(sheet)
	require.NoError(t, err)
	for _, r := range rows {
		row := sh.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "premiums.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadPremiums(t *testing.T) {
	path := createWorkbook(t, "Matrix", [][]string{
		{"Car_Model_ID", "Plan_ID", "Base_Premium", "Deductible", "Note"},
		{"1", "1", "25,000.00", "0", "flagship"},
		{"", "", "", "", ""},
		{"4", "3", "7200.5", "", ""},
	})

	premiums, err := ReadPremiums(path, "")
	require.NoError(t, err)
	require.Len(t, premiums, 2)
	assert.Equal(t, int64(1), premiums[0].VehicleID)
	assert.Equal(t, "25000.00", premiums[0].BasePremium.StringFixed(2))
	assert.Equal(t, "7200.50", premiums[1].BasePremium.StringFixed(2))
	assert.True(t, premiums[1].Deductible.IsZero())
}

func TestReadPremiums_RejectsBadRows(t *testing.T) {
	path := createWorkbook(t, "Matrix", [][]string{
		{"car_model_id", "plan_id", "base_premium"},
		{"1", "1", "25000"},
		{"x", "1", "25000"},
		{"2", "1", "lots"},
	})

	_, err := ReadPremiums(path, "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "2 invalid rows")
	assert.Contains(t, err.Error(), "row 3")
	assert.Contains(t, err.Error(), "row 4")
}

func TestReadPremiums_MissingColumn(t *testing.T) {
	path := createWorkbook(t, "Matrix", [][]string{
		{"car_model_id", "premium"},
		{"1", "25000"},
	})

	_, err := ReadPremiums(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"plan_id"`)
}

func TestReadPremiums_SheetByName(t *testing.T) {
	path := createWorkbook(t, "2025", [][]string{
		{"car_model_id", "plan_id", "base_premium"},
		{"1", "2", "12500"},
	})

	_, err := ReadPremiums(path, "2024")
	require.Error(t, err)

	premiums, err := ReadPremiums(path, "2025")
	require.NoError(t, err)
	assert.Len(t, premiums, 1)
}

func TestImportPremiums(t *testing.T) {
	st := storetest.NewSeeded(t)
	ctx := context.Background()
	path := createWorkbook(t, "Matrix", [][]string{
		{"car_model_id", "plan_id", "base_premium", "deductible"},
		{"4", "2", "8100", "1500"},
		{"1", "1", "26000", "0"},
	})

	n, err := ImportPremiums(ctx, st, path, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	added, err := st.GetQuotationDetail(ctx, storetest.CityV2023, storetest.ValuePlus)
	require.NoError(t, err)
	assert.Equal(t, "8100.00", added.BasePremium.StringFixed(2))

	updated, err := st.GetQuotationDetail(ctx, storetest.CivicHEVRS2024, storetest.ComprehensivePlus)
	require.NoError(t, err)
	assert.Equal(t, "26000.00", updated.BasePremium.StringFixed(2))
}
