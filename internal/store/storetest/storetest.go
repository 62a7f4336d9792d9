// Package storetest provides a migrated SQLite store and catalog fixtures
// for tests in other packages.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/store"
)

// Fixture ids.
const (
	CivicHEVRS2024 int64 = 1
	CivicRS2024    int64 = 2
	CivicEL2023    int64 = 3
	CityV2023      int64 = 4
	YarisAtiv2024  int64 = 5

	ComprehensivePlus int64 = 1
	ValuePlus         int64 = 2
	Basic             int64 = 3
)

// Vehicles is the catalog fixture.
var Vehicles = []model.Vehicle{
	{ID: CivicHEVRS2024, Brand: "Honda", Model: "Civic", SubModel: "e:HEV RS", Year: 2024, EstimatedPrice: decimal.RequireFromString("1099000")},
	{ID: CivicRS2024, Brand: "Honda", Model: "Civic", SubModel: "RS", Year: 2024, EstimatedPrice: decimal.RequireFromString("1029000")},
	{ID: CivicEL2023, Brand: "Honda", Model: "Civic", SubModel: "EL+", Year: 2023, EstimatedPrice: decimal.RequireFromString("964000")},
	{ID: CityV2023, Brand: "Honda", Model: "City", SubModel: "V", Year: 2023, EstimatedPrice: decimal.RequireFromString("609000")},
	{ID: YarisAtiv2024, Brand: "Toyota", Model: "Yaris Ativ", SubModel: "Premium", Year: 2024, EstimatedPrice: decimal.RequireFromString("689000")},
}

// Plans is the plan fixture.
var Plans = []model.Plan{
	{ID: ComprehensivePlus, Type: model.PlanType1, Name: "Zeus Comprehensive Plus", Insurer: "Zeus Insurance"},
	{ID: ValuePlus, Type: model.PlanType2Plus, Name: "Zeus Value 2+", Insurer: "Zeus Insurance"},
	{ID: Basic, Type: model.PlanType3Plus, Name: "Zeus Basic 3+", Insurer: "Zeus Insurance"},
}

// Premiums is the premium matrix fixture.
var Premiums = []model.Premium{
	{VehicleID: CivicHEVRS2024, PlanID: ComprehensivePlus, BasePremium: decimal.RequireFromString("25000.00"), Deductible: decimal.Zero},
	{VehicleID: CivicHEVRS2024, PlanID: ValuePlus, BasePremium: decimal.RequireFromString("12500.00"), Deductible: decimal.RequireFromString("2000")},
	{VehicleID: CivicRS2024, PlanID: ComprehensivePlus, BasePremium: decimal.RequireFromString("23900.00"), Deductible: decimal.Zero},
	{VehicleID: CivicEL2023, PlanID: ComprehensivePlus, BasePremium: decimal.RequireFromString("21500.00"), Deductible: decimal.RequireFromString("3000")},
	{VehicleID: CityV2023, PlanID: Basic, BasePremium: decimal.RequireFromString("7200.00"), Deductible: decimal.Zero},
	{VehicleID: YarisAtiv2024, PlanID: ValuePlus, BasePremium: decimal.RequireFromString("9800.00"), Deductible: decimal.RequireFromString("1000")},
}

// NewSQLite returns a migrated SQLite store in a temporary directory.
func NewSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// Seed loads the catalog, plan and premium fixtures into st.
func Seed(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	_, err := st.UpsertVehicles(ctx, Vehicles)
	require.NoError(t, err)
	_, err = st.UpsertPlans(ctx, Plans)
	require.NoError(t, err)
	_, err = st.UpsertPremiums(ctx, Premiums)
	require.NoError(t, err)
}

// NewSeeded returns a migrated SQLite store holding the fixtures.
func NewSeeded(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st := NewSQLite(t)
	Seed(t, st)
	return st
}
