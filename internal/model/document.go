package model

import "encoding/json"

// Section labels the part of a policy wording a document excerpt belongs to.
type Section string

const (
	SectionCoverage   Section = "Coverage"
	SectionExclusion  Section = "Exclusion"
	SectionCondition  Section = "Condition"
	SectionDefinition Section = "Definition"
)

// Sections lists every valid section label.
var Sections = []Section{SectionCoverage, SectionExclusion, SectionCondition, SectionDefinition}

// Valid reports whether s is one of the known sections.
func (s Section) Valid() bool {
	for _, v := range Sections {
		if s == v {
			return true
		}
	}
	return false
}

// PlanTypeAll scopes a policy document to every plan type.
const PlanTypeAll = "All"

// PolicyDocument is an excerpt of policy wording. Embedding is nil until the
// ingestion step has run; such rows are not searchable.
type PolicyDocument struct {
	ID        int64           `json:"id" yaml:"id"`
	Section   Section         `json:"section" yaml:"section"`
	PlanType  string          `json:"plan_type" yaml:"plan_type"`
	Content   string          `json:"content" yaml:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty" yaml:"-"`
	Embedding []float32       `json:"-" yaml:"-"`
}

// DocumentMatch is a policy document ranked by similarity to a query.
type DocumentMatch struct {
	Document   PolicyDocument `json:"document"`
	Similarity float64        `json:"similarity"`
}
