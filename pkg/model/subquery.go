package model

import (
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrEmptyQuery = goerr.New("query is empty")
)

// Intent is the classified intent of a query or sub-query
type Intent string

const (
	IntentSingleFact  Intent = "single_fact"
	IntentComparison  Intent = "comparison"
	IntentMultiPart   Intent = "multi_part"
	IntentHowTo       Intent = "how_to"
	IntentExploration Intent = "exploration"
)

// Validate checks if the intent is one of the known values
func (x Intent) Validate() error {
	switch x {
	case IntentSingleFact, IntentComparison, IntentMultiPart, IntentHowTo, IntentExploration:
		return nil
	default:
		return goerr.New("invalid intent", goerr.V("intent", x))
	}
}

const (
	// DefaultPriority is assigned to sub-queries that do not declare one
	DefaultPriority = 3

	// MinPriority and MaxPriority bound the priority range (5 = highest)
	MinPriority = 1
	MaxPriority = 5
)

// SubQuery is one atomic, independently answerable question produced by
// decomposing a complex user query.
type SubQuery struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Intent     Intent `json:"intent"`
	Dependency string `json:"dependency,omitempty"`
	Priority   int    `json:"priority"`
}

// QueryClassification is the intent classifier's judgement of a raw query.
// Complexity is a 1-5 integer; 1 means the query needs no decomposition.
type QueryClassification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Complexity int     `json:"complexity"`
	Reasoning  string  `json:"reasoning"`
}

// Decomposition is the result of breaking a user query into sub-queries
type Decomposition struct {
	SubQueries []*SubQuery `json:"sub_queries"`
	Intent     Intent      `json:"intent"`
	Complexity int         `json:"complexity"`
	Reasoning  string      `json:"reasoning"`
}
