package pricing

import (
	"sort"
	"time"

	"roombook/internal/models"

	"github.com/shopspring/decimal"
)

const (
	standardTierMaxHours = 3.0
	halfDayTierMinHours  = 3.0
	dayTierMinHours      = 8.0

	peakStartHour = 8
	peakEndHour   = 18
)

var (
	halfDayFactor = decimal.RequireFromString("0.85")
	dayFactor     = decimal.RequireFromString("0.75")
)

// DefaultRules builds the rule set used when a resource carries none.
func DefaultRules(res *models.Resource) []models.PricingRule {
	base := dec(res.BaseHourlyRate)
	peakStart, peakEnd := peakStartHour, peakEndHour

	return []models.PricingRule{
		{
			ID:       res.ID + "-tiered",
			Kind:     models.RuleHourlyTier,
			Priority: 10,
			Tiers: []models.PricingTier{
				{Name: "Standard", MaxHours: floatPtr(standardTierMaxHours), Rate: res.BaseHourlyRate},
				{Name: "Half-day", MinHours: floatPtr(halfDayTierMinHours), Rate: round2(base.Mul(halfDayFactor)).InexactFloat64()},
				{Name: "Day", MinHours: floatPtr(dayTierMinHours), Rate: round2(base.Mul(dayFactor)).InexactFloat64()},
			},
		},
		{
			ID:            res.ID + "-peak",
			Kind:          models.RulePeak,
			Priority:      8,
			PeakStartHour: &peakStart,
			PeakEndHour:   &peakEnd,
			Multiplier:    1.10,
		},
		{
			ID:         res.ID + "-weekend",
			Kind:       models.RuleWeekend,
			Priority:   7,
			Multiplier: 1.05,
		},
	}
}

// ResolveRules returns the resource's own rules, or the default set, ordered
// by descending priority. Equal priorities keep their declared order.
func ResolveRules(res *models.Resource) []models.PricingRule {
	src := res.PricingRules
	if len(src) == 0 {
		src = DefaultRules(res)
	}
	rules := make([]models.PricingRule, len(src))
	copy(rules, src)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	return rules
}

// ruleActive applies the optional validity range and day-of-week filters
// against the local start of the window.
func ruleActive(rule models.PricingRule, start time.Time) bool {
	if rule.ValidFrom != nil && start.Before(*rule.ValidFrom) {
		return false
	}
	if rule.ValidTo != nil && start.After(*rule.ValidTo) {
		return false
	}
	if len(rule.DaysOfWeek) == 0 {
		return true
	}
	for _, d := range rule.DaysOfWeek {
		if d == start.Weekday() {
			return true
		}
	}
	return false
}

// selectTier picks the tier whose bracket contains hours. Brackets are
// inclusive on both ends; when several match, a tier with an upper bound
// wins over an open-ended one, then the higher lower bound wins.
func selectTier(tiers []models.PricingTier, hours decimal.Decimal) *models.PricingTier {
	best := -1
	for i := range tiers {
		t := &tiers[i]
		if t.MinHours != nil && hours.LessThan(dec(*t.MinHours)) {
			continue
		}
		if t.MaxHours != nil && hours.GreaterThan(dec(*t.MaxHours)) {
			continue
		}
		if best < 0 || tierBeats(t, &tiers[best]) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return &tiers[best]
}

func tierBeats(a, b *models.PricingTier) bool {
	if (a.MaxHours != nil) != (b.MaxHours != nil) {
		return a.MaxHours != nil
	}
	return minHours(a) > minHours(b)
}

func minHours(t *models.PricingTier) float64 {
	if t.MinHours == nil {
		return 0
	}
	return *t.MinHours
}

func inPeak(rule models.PricingRule, start time.Time) bool {
	if rule.PeakStartHour == nil || rule.PeakEndHour == nil {
		return false
	}
	h := start.Hour()
	return h >= *rule.PeakStartHour && h < *rule.PeakEndHour
}

func isWeekend(start time.Time) bool {
	d := start.Weekday()
	return d == time.Saturday || d == time.Sunday
}

func floatPtr(v float64) *float64 {
	return &v
}
