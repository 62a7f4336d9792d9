package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PlanType is the coverage class of an insurance plan.
type PlanType string

const (
	PlanType1     PlanType = "Type 1"
	PlanType2Plus PlanType = "Type 2+"
	PlanType3Plus PlanType = "Type 3+"
)

// Vehicle is a row of the vehicle catalog. Many rows share brand and model
// and differ by sub-model (trim) or model year.
type Vehicle struct {
	ID             int64           `json:"car_model_id" yaml:"id"`
	Brand          string          `json:"brand" yaml:"brand"`
	Model          string          `json:"model" yaml:"model"`
	SubModel       string          `json:"sub_model,omitempty" yaml:"sub_model"`
	Year           int             `json:"year" yaml:"year"`
	EstimatedPrice decimal.Decimal `json:"car_estimated_price" yaml:"estimated_price"`
}

// DisplayName renders the vehicle as "Brand Model SubModel (Year)".
func (v Vehicle) DisplayName() string {
	parts := []string{v.Brand, v.Model}
	if v.SubModel != "" {
		parts = append(parts, v.SubModel)
	}
	return fmt.Sprintf("%s (%d)", strings.Join(parts, " "), v.Year)
}

// Plan is an insurance product offered by an insurer.
type Plan struct {
	ID      int64    `json:"plan_id" yaml:"id"`
	Type    PlanType `json:"plan_type" yaml:"type"`
	Name    string   `json:"plan_name" yaml:"name"`
	Insurer string   `json:"insurer_name" yaml:"insurer"`
}

// PlanOffer is a plan priced for one specific vehicle. It comes from the
// precomputed premium matrix and is never computed on the fly.
type PlanOffer struct {
	VehicleID   int64           `json:"car_model_id"`
	Plan        Plan            `json:"plan"`
	BasePremium decimal.Decimal `json:"base_premium"`
	Deductible  decimal.Decimal `json:"deductible"`
}

// QuotationDetail is one vehicle joined with one of its plan offers.
type QuotationDetail struct {
	Vehicle     Vehicle         `json:"vehicle"`
	Plan        Plan            `json:"plan"`
	BasePremium decimal.Decimal `json:"base_premium"`
	Deductible  decimal.Decimal `json:"deductible"`
}

// Premium is a premium matrix cell keyed by vehicle and plan ids.
type Premium struct {
	VehicleID   int64           `json:"car_model_id" yaml:"vehicle_id"`
	PlanID      int64           `json:"plan_id" yaml:"plan_id"`
	BasePremium decimal.Decimal `json:"base_premium" yaml:"base_premium"`
	Deductible  decimal.Decimal `json:"deductible" yaml:"deductible"`
}
