package model

import "time"

// Factor is one itemized contribution to a composite score, kept for
// auditability of every scoring run.
type Factor struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
}

// ScoringRecord is an append-only snapshot of one deterministic scoring
// run. Never mutated in place; the current score is the most recent
// record by time.
type ScoringRecord struct {
	ID              string    `json:"id" db:"id"`
	PropertyID      string    `json:"property_id" db:"property_id"`
	MotivationScore float64   `json:"motivation_score" db:"motivation_score"`
	DealScore       float64   `json:"deal_score" db:"deal_score"`
	Composite       float64   `json:"composite" db:"composite"`
	Label           string    `json:"label" db:"label"`
	Factors         []Factor  `json:"factors" db:"factors"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// PredictionRecord is an append-only snapshot of one predictive scoring
// run, including the weight schema used so runs can be replayed.
type PredictionRecord struct {
	ID                string             `json:"id" db:"id"`
	PropertyID        string             `json:"property_id" db:"property_id"`
	Score             float64            `json:"score" db:"score"`
	DaysUntilDistress int                `json:"days_until_distress" db:"days_until_distress"`
	Confidence        float64            `json:"confidence" db:"confidence"`
	Weights           map[string]float64 `json:"weights" db:"weights"`
	Components        []Factor           `json:"components" db:"components"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
}

// FeatureBundle is the input to the predictive scorer. Nullable fields use
// pointers so missing data is distinguishable from zero; the scorer treats
// missing features as neutral and reflects the gap in its confidence.
type FeatureBundle struct {
	OwnershipYears     *float64   `json:"ownership_years,omitempty"`
	LastSalePrice      *float64   `json:"last_sale_price,omitempty"`
	LastSaleDate       *time.Time `json:"last_sale_date,omitempty"`
	EquityPercent      *float64   `json:"equity_percent,omitempty"`
	PrevEquityPercent  *float64   `json:"prev_equity_percent,omitempty"`
	EquityReadingDays  *float64   `json:"equity_reading_days,omitempty"` // days between the two equity readings
	LoanBalance        *float64   `json:"loan_balance,omitempty"`
	Absentee           bool       `json:"absentee"`
	AbsenteeYears      *float64   `json:"absentee_years,omitempty"`
	Vacant             bool       `json:"vacant"`
	Corporate          bool       `json:"corporate"`
	FreeAndClear       bool       `json:"free_and_clear"`
	TaxDelinquentAmt   *float64   `json:"tax_delinquent_amt,omitempty"`
	TaxDelinquentPrev  *float64   `json:"tax_delinquent_prev,omitempty"`
	ForeclosureStage   string     `json:"foreclosure_stage,omitempty"` // "", "notice", "auction_scheduled"
	DefaultAmount      *float64   `json:"default_amount,omitempty"`
	OwnerAgeEstimate   *float64   `json:"owner_age_estimate,omitempty"`
	PhoneOnFile        bool       `json:"phone_on_file"`
	EmailOnFile        bool       `json:"email_on_file"`
	Probate            bool       `json:"probate"`
	Inherited          bool       `json:"inherited"`
	HistoricalScores   []float64  `json:"historical_scores,omitempty"` // oldest first
	RecentSignalCount  int        `json:"recent_signal_count"`
	ComparableValueRat *float64   `json:"comparable_value_ratio,omitempty"`
}
