// Package catalog resolves loose vehicle descriptions against the vehicle
// catalog and attaches every plan offered for each match.
package catalog

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/store"
)

// Stage names one step of the relaxation cascade.
type Stage string

const (
	StageExact           Stage = "exact"
	StageWithoutSubModel Stage = "without_sub_model"
	StageWithoutYear     Stage = "without_year"
	StagePartialModel    Stage = "partial_model"
	StageKeywordModel    Stage = "keyword_model"
	StageKeywordSub      Stage = "keyword_sub_model"
	StageKeywordBrand    Stage = "keyword_brand"
	StageNoMatch         Stage = "no_match"
)

// VehicleQuery is a partial vehicle description. At least one field must be
// set. Keyword is used only when the structured fields are all empty.
type VehicleQuery struct {
	Brand    string `json:"brand,omitempty"`
	Model    string `json:"model,omitempty"`
	SubModel string `json:"sub_model,omitempty"`
	Year     int    `json:"year,omitempty"`
	Keyword  string `json:"keyword,omitempty"`
}

// StageResult records what one stage searched for and how many rows it found.
type StageResult struct {
	Stage  Stage    `json:"stage"`
	Fields []string `json:"fields"`
	Count  int      `json:"count"`
}

// VehicleMatch is a catalog row with every plan offered for it.
type VehicleMatch struct {
	Vehicle model.Vehicle     `json:"vehicle"`
	Offers  []model.PlanOffer `json:"offers"`
}

// Resolution is the outcome of a resolve. Matched is false when every stage
// came back empty; that is a normal result, not an error.
type Resolution struct {
	Matched bool           `json:"matched"`
	Stage   Stage          `json:"stage"`
	Trace   []StageResult  `json:"trace"`
	Matches []VehicleMatch `json:"matches"`
}

// Resolver runs the staged relaxation cascade against a store.
type Resolver struct {
	store store.Store
}

// NewResolver creates a Resolver.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

type stage struct {
	name   Stage
	filter store.VehicleFilter
	fields []string
}

// Resolve finds catalog rows for q, most specific stage first, and returns
// all rows of the first stage that matches. Ties are never broken and no
// stage is capped: Trace counts are the full row counts.
func (r *Resolver) Resolve(ctx context.Context, q VehicleQuery) (*Resolution, error) {
	q = q.normalized()
	if q.Year != 0 && (q.Year < 1900 || q.Year > 2200) {
		return nil, apperr.Validation("year %d is out of range", q.Year)
	}

	stages := r.plan(q)
	if len(stages) == 0 {
		return nil, apperr.Validation("at least one of brand, model, sub_model, year or keyword is required")
	}

	log := zap.L().With(zap.String("brand", q.Brand), zap.String("model", q.Model),
		zap.String("sub_model", q.SubModel), zap.Int("year", q.Year), zap.String("keyword", q.Keyword))

	res := &Resolution{Stage: StageNoMatch}
	for _, st := range stages {
		vehicles, err := r.store.FindVehicles(ctx, st.filter)
		if err != nil {
			return nil, apperr.Upstream(eris.Wrapf(err, "catalog: stage %s", st.name), "vehicle lookup failed")
		}
		res.Trace = append(res.Trace, StageResult{Stage: st.name, Fields: st.fields, Count: len(vehicles)})
		log.Debug("catalog: resolve stage",
			zap.String("stage", string(st.name)),
			zap.Strings("fields", st.fields),
			zap.Int("count", len(vehicles)),
		)
		if len(vehicles) == 0 {
			continue
		}

		matches, err := r.attachOffers(ctx, vehicles)
		if err != nil {
			return nil, err
		}
		res.Matched = true
		res.Stage = st.name
		res.Matches = matches
		break
	}

	log.Info("catalog: resolved",
		zap.String("stage", string(res.Stage)),
		zap.Int("matches", len(res.Matches)),
	)
	return res, nil
}

// plan builds the stage list for q, skipping stages that would repeat the
// previous filter.
func (r *Resolver) plan(q VehicleQuery) []stage {
	if q.Brand == "" && q.Model == "" && q.SubModel == "" && q.Year == 0 {
		if q.Keyword == "" {
			return nil
		}
		return []stage{
			{StageKeywordModel, store.VehicleFilter{Model: store.Contains(q.Keyword)}, []string{"model~"}},
			{StageKeywordSub, store.VehicleFilter{SubModel: store.Contains(q.Keyword)}, []string{"sub_model~"}},
			{StageKeywordBrand, store.VehicleFilter{Brand: store.Contains(q.Keyword)}, []string{"brand~"}},
		}
	}

	exact := store.VehicleFilter{
		Brand:    store.Exact(q.Brand),
		Model:    store.Exact(q.Model),
		SubModel: store.Exact(q.SubModel),
		Year:     q.Year,
	}
	stages := []stage{{StageExact, exact, fieldsOf(exact)}}

	if q.SubModel != "" {
		f := exact
		f.SubModel = store.TextFilter{}
		stages = appendStage(stages, StageWithoutSubModel, f)
	}
	if q.Year != 0 {
		f := exact
		f.SubModel = store.TextFilter{}
		f.Year = 0
		stages = appendStage(stages, StageWithoutYear, f)
	}
	if q.Model != "" {
		f := store.VehicleFilter{Brand: store.Exact(q.Brand), Model: store.Contains(q.Model)}
		stages = appendStage(stages, StagePartialModel, f)
	}
	return stages
}

func appendStage(stages []stage, name Stage, f store.VehicleFilter) []stage {
	if f.Empty() || f == stages[len(stages)-1].filter {
		return stages
	}
	return append(stages, stage{name, f, fieldsOf(f)})
}

func fieldsOf(f store.VehicleFilter) []string {
	var fields []string
	add := func(name string, tf store.TextFilter) {
		switch {
		case tf.Value == "":
		case tf.Mode == store.MatchContains:
			fields = append(fields, name+"~")
		default:
			fields = append(fields, name)
		}
	}
	add("brand", f.Brand)
	add("model", f.Model)
	add("sub_model", f.SubModel)
	if f.Year != 0 {
		fields = append(fields, "year")
	}
	return fields
}

func (r *Resolver) attachOffers(ctx context.Context, vehicles []model.Vehicle) ([]VehicleMatch, error) {
	ids := make([]int64, len(vehicles))
	for i, v := range vehicles {
		ids[i] = v.ID
	}
	offers, err := r.store.ListOffers(ctx, ids)
	if err != nil {
		return nil, apperr.Upstream(eris.Wrap(err, "catalog: list offers"), "plan lookup failed")
	}

	byVehicle := make(map[int64][]model.PlanOffer, len(vehicles))
	for _, o := range offers {
		byVehicle[o.VehicleID] = append(byVehicle[o.VehicleID], o)
	}
	matches := make([]VehicleMatch, len(vehicles))
	for i, v := range vehicles {
		matches[i] = VehicleMatch{Vehicle: v, Offers: byVehicle[v.ID]}
	}
	return matches, nil
}

// Normalize applies NFKC, case folding and whitespace collapsing.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

func (q VehicleQuery) normalized() VehicleQuery {
	q.Brand = Normalize(q.Brand)
	q.Model = Normalize(q.Model)
	q.SubModel = Normalize(q.SubModel)
	q.Keyword = Normalize(q.Keyword)
	return q
}
