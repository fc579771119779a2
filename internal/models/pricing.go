package models

import "time"

type RuleKind string

const (
	RuleHourlyTier RuleKind = "hourly_tier"
	RuleBundle     RuleKind = "bundle"
	RulePeak       RuleKind = "peak"
	RuleWeekend    RuleKind = "weekend"
	RuleHoliday    RuleKind = "holiday"
	RuleMember     RuleKind = "member"
)

// AttendeeSurchargeRule is the applied-rule id recorded for the per-attendee surcharge.
const AttendeeSurchargeRule = "attendee_surcharge"

// PricingRule is one unit of the rule-based pricing model. Only the fields
// relevant to Kind are read.
type PricingRule struct {
	ID       string   `json:"id" yaml:"id"`
	Kind     RuleKind `json:"kind" yaml:"kind"`
	Priority int      `json:"priority" yaml:"priority"`

	Tiers []PricingTier `json:"tiers,omitempty" yaml:"tiers"`

	BundleHours float64 `json:"bundle_hours,omitempty" yaml:"bundle_hours"`
	BundleRate  float64 `json:"bundle_rate,omitempty" yaml:"bundle_rate"`

	PeakStartHour *int `json:"peak_start_hour,omitempty" yaml:"peak_start_hour"`
	PeakEndHour   *int `json:"peak_end_hour,omitempty" yaml:"peak_end_hour"`

	Multiplier   float64 `json:"multiplier,omitempty" yaml:"multiplier"`
	CustomerTier string  `json:"customer_tier,omitempty" yaml:"customer_tier"`

	// Optional activation filters.
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty" yaml:"days_of_week"`
	ValidFrom  *time.Time     `json:"valid_from,omitempty" yaml:"valid_from"`
	ValidTo    *time.Time     `json:"valid_to,omitempty" yaml:"valid_to"`
}

type PricingTier struct {
	Name     string   `json:"name" yaml:"name"`
	MinHours *float64 `json:"min_hours,omitempty" yaml:"min_hours"`
	MaxHours *float64 `json:"max_hours,omitempty" yaml:"max_hours"`
	Rate     float64  `json:"rate" yaml:"rate"`
}

// PriceBreakdown is the itemized output of a quote. Every amount is rounded to
// two decimals.
type PriceBreakdown struct {
	Base         float64  `json:"base"`
	AddOns       float64  `json:"add_ons"`
	Fees         float64  `json:"fees"`
	Taxes        float64  `json:"taxes"`
	Discounts    float64  `json:"discounts"`
	Total        float64  `json:"total"`
	Currency     string   `json:"currency"`
	AppliedRules []string `json:"applied_rules"`
}

// ItemQuote is one line of a multi-resource quote.
type ItemQuote struct {
	ResourceID string         `json:"resource_id"`
	Breakdown  PriceBreakdown `json:"breakdown"`
	Error      string         `json:"error,omitempty"`
}

type MultiQuote struct {
	Items    []ItemQuote `json:"items"`
	Total    float64     `json:"total"`
	Currency string      `json:"currency"`
}
