// Package seed loads catalog and policy fixtures into a store.
package seed

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/store"
)

// Fixture is the YAML seed file layout.
type Fixture struct {
	Vehicles  []model.Vehicle        `yaml:"vehicles"`
	Plans     []model.Plan           `yaml:"plans"`
	Premiums  []model.Premium        `yaml:"premiums"`
	Documents []model.PolicyDocument `yaml:"documents"`
}

// Counts reports the rows written per table.
type Counts struct {
	Vehicles  int64 `json:"vehicles"`
	Plans     int64 `json:"plans"`
	Premiums  int64 `json:"premiums"`
	Documents int64 `json:"documents"`
}

// LoadFile reads and validates a fixture file.
func LoadFile(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: read %s", path)
	}
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, apperr.Validation("seed: parse %s: %v", path, err)
	}
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// Validate checks ids and references. Premiums may reference vehicles or
// plans that already exist in the store, so only rows present in the
// fixture are cross-checked when both sides are listed.
func (fx *Fixture) Validate() error {
	vehicles := make(map[int64]bool, len(fx.Vehicles))
	for i, v := range fx.Vehicles {
		switch {
		case v.ID <= 0:
			return apperr.Validation("seed: vehicle %d has no id", i)
		case vehicles[v.ID]:
			return apperr.Validation("seed: duplicate vehicle id %d", v.ID)
		case v.Brand == "" || v.Model == "" || v.Year == 0:
			return apperr.Validation("seed: vehicle %d needs brand, model and year", v.ID)
		case v.EstimatedPrice.IsNegative():
			return apperr.Validation("seed: vehicle %d has a negative price", v.ID)
		}
		vehicles[v.ID] = true
	}

	plans := make(map[int64]bool, len(fx.Plans))
	for i, p := range fx.Plans {
		switch {
		case p.ID <= 0:
			return apperr.Validation("seed: plan %d has no id", i)
		case plans[p.ID]:
			return apperr.Validation("seed: duplicate plan id %d", p.ID)
		case p.Name == "" || p.Type == "":
			return apperr.Validation("seed: plan %d needs name and type", p.ID)
		}
		plans[p.ID] = true
	}

	type cell struct{ vehicle, plan int64 }
	seen := make(map[cell]bool, len(fx.Premiums))
	for _, p := range fx.Premiums {
		c := cell{p.VehicleID, p.PlanID}
		switch {
		case p.VehicleID <= 0 || p.PlanID <= 0:
			return apperr.Validation("seed: premium needs vehicle_id and plan_id")
		case seen[c]:
			return apperr.Validation("seed: duplicate premium for vehicle %d plan %d", p.VehicleID, p.PlanID)
		case len(fx.Vehicles) > 0 && !vehicles[p.VehicleID]:
			return apperr.Validation("seed: premium references unknown vehicle %d", p.VehicleID)
		case len(fx.Plans) > 0 && !plans[p.PlanID]:
			return apperr.Validation("seed: premium references unknown plan %d", p.PlanID)
		case !p.BasePremium.IsPositive():
			return apperr.Validation("seed: premium for vehicle %d plan %d must be positive", p.VehicleID, p.PlanID)
		case p.Deductible.IsNegative():
			return apperr.Validation("seed: deductible for vehicle %d plan %d is negative", p.VehicleID, p.PlanID)
		}
		seen[c] = true
	}

	for i, d := range fx.Documents {
		if !d.Section.Valid() {
			return apperr.Validation("seed: document %d has unknown section %q", i, d.Section)
		}
		if d.Content == "" {
			return apperr.Validation("seed: document %d has no content", i)
		}
	}
	return nil
}

// Apply writes the fixture. Catalog rows are upserted by id; documents are
// appended without embeddings unless skipDocuments is set.
func Apply(ctx context.Context, st store.Store, fx *Fixture, skipDocuments bool) (*Counts, error) {
	var (
		c   Counts
		err error
	)
	if c.Vehicles, err = st.UpsertVehicles(ctx, fx.Vehicles); err != nil {
		return nil, eris.Wrap(err, "seed: vehicles")
	}
	if c.Plans, err = st.UpsertPlans(ctx, fx.Plans); err != nil {
		return nil, eris.Wrap(err, "seed: plans")
	}
	if c.Premiums, err = st.UpsertPremiums(ctx, fx.Premiums); err != nil {
		return nil, eris.Wrap(err, "seed: premiums")
	}
	if !skipDocuments {
		if c.Documents, err = st.InsertDocuments(ctx, fx.Documents); err != nil {
			return nil, eris.Wrap(err, "seed: documents")
		}
	}

	zap.L().Info("seed: fixture applied",
		zap.Int64("vehicles", c.Vehicles),
		zap.Int64("plans", c.Plans),
		zap.Int64("premiums", c.Premiums),
		zap.Int64("documents", c.Documents),
	)
	return &c, nil
}
