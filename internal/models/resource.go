package models

import "time"

// Resource is a bookable room.
type Resource struct {
	ID             string        `json:"id" yaml:"id"`
	Name           string        `json:"name" yaml:"name"`
	Capacity       int           `json:"capacity" yaml:"capacity"`
	BaseHourlyRate float64       `json:"base_hourly_rate" yaml:"base_hourly_rate"`
	Amenities      []string      `json:"amenities,omitempty" yaml:"amenities"`
	PricingRules   []PricingRule `json:"pricing_rules,omitempty" yaml:"pricing_rules"`
	AddOns         []AddOn       `json:"add_ons,omitempty" yaml:"add_ons"`
	Timezone       string        `json:"timezone,omitempty" yaml:"timezone"`
	CalendarID     string        `json:"calendar_id,omitempty" yaml:"calendar_id"`
	Disabled       bool          `json:"disabled,omitempty" yaml:"disabled"`
	CreatedAt      time.Time     `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time     `json:"updated_at" yaml:"-"`
}

// Location resolves the resource timezone, falling back to fallback and then UTC.
func (r *Resource) Location(fallback string) *time.Location {
	for _, name := range []string{r.Timezone, fallback} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// FindAddOn returns the add-on with the given id, or nil.
func (r *Resource) FindAddOn(id string) *AddOn {
	for i := range r.AddOns {
		if r.AddOns[i].ID == id {
			return &r.AddOns[i]
		}
	}
	return nil
}

const (
	AddOnFlat        = "flat"
	AddOnPerHour     = "per_hour"
	AddOnPerAttendee = "per_attendee"

	TaxabilityTaxable = "taxable"
	TaxabilityExempt  = "exempt"
)

// AddOn is an optional extra offered with a resource (catering, A/V, ...).
type AddOn struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	PricingType string  `json:"pricing_type" yaml:"pricing_type"`
	Price       float64 `json:"price" yaml:"price"`
	Taxability  string  `json:"taxability,omitempty" yaml:"taxability"`
}

// Taxable reports whether the add-on contributes to the taxable amount.
// An empty taxability is treated as taxable.
func (a *AddOn) Taxable() bool {
	return a.Taxability != TaxabilityExempt
}

type AddOnSelection struct {
	AddOnID  string `json:"add_on_id"`
	Quantity int    `json:"quantity,omitempty"`
}
