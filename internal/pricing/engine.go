package pricing

import (
	"context"
	"time"

	"roombook/internal/config"
	"roombook/internal/metrics"
	"roombook/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ResourceLookup resolves resources for batch quotes.
type ResourceLookup interface {
	Get(ctx context.Context, id string) (*models.Resource, error)
}

type Engine struct {
	resources  ResourceLookup
	taxRate    decimal.Decimal
	surcharge  decimal.Decimal
	serviceFee decimal.Decimal
	currency   string
	defaultTZ  string
	logger     *zerolog.Logger
}

func NewEngine(cfg config.PricingConfig, resources ResourceLookup, logger *zerolog.Logger) *Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Engine{
		resources:  resources,
		taxRate:    dec(cfg.TaxRate),
		surcharge:  dec(cfg.AttendeeSurcharge),
		serviceFee: dec(cfg.ServiceFee),
		currency:   currency,
		defaultTZ:  cfg.DefaultTimezone,
		logger:     logger,
	}
}

func (e *Engine) Currency() string {
	return e.currency
}

// Quote prices one item. It never fails: a non-positive window prices at zero
// and unknown rule kinds are skipped.
func (e *Engine) Quote(res *models.Resource, item models.BookingItem, customerTier string) models.PriceBreakdown {
	hours := durationHours(item.Window.Duration())
	start := item.Window.Start.In(res.Location(e.defaultTZ))
	applied := make([]string, 0, 4)

	base := round2(dec(res.BaseHourlyRate).Mul(hours))

	for _, rule := range ResolveRules(res) {
		if !ruleActive(rule, start) {
			continue
		}

		switch rule.Kind {
		case models.RuleHourlyTier:
			rate := dec(res.BaseHourlyRate)
			if tier := selectTier(rule.Tiers, hours); tier != nil {
				rate = dec(tier.Rate)
			}
			base = round2(rate.Mul(hours))
			applied = append(applied, rule.ID)

		case models.RuleBundle:
			if rule.BundleHours <= 0 || rule.BundleRate <= 0 || !hours.IsPositive() {
				continue
			}
			blocks := hours.Div(dec(rule.BundleHours)).Ceil()
			capped := round2(blocks.Mul(dec(rule.BundleRate)))
			if capped.LessThan(base) {
				base = capped
				applied = append(applied, rule.ID)
			}

		case models.RulePeak:
			if rule.Multiplier > 0 && inPeak(rule, start) {
				base = round2(base.Mul(dec(rule.Multiplier)))
				applied = append(applied, rule.ID)
			}

		case models.RuleWeekend:
			if rule.Multiplier > 0 && isWeekend(start) {
				base = round2(base.Mul(dec(rule.Multiplier)))
				applied = append(applied, rule.ID)
			}

		case models.RuleMember:
			if rule.Multiplier > 0 && customerTier != "" && customerTier == rule.CustomerTier {
				base = round2(base.Mul(dec(rule.Multiplier)))
				applied = append(applied, rule.ID)
			}

		case models.RuleHoliday:
			// No holiday calendar is wired; recognized and inert.

		default:
			e.logger.Debug().Str("rule_id", rule.ID).Str("kind", string(rule.Kind)).Msg("skipping unknown pricing rule kind")
		}
	}

	if extra := int64(item.Attendees - 1); extra > 0 {
		s := round2(decimal.NewFromInt(extra).Mul(e.surcharge).Mul(hours))
		if s.IsPositive() {
			base = base.Add(s)
			applied = append(applied, models.AttendeeSurchargeRule)
		}
	}

	addOns, taxableAddOns := e.addOns(res, item, hours)

	fees := decimal.Zero
	if hours.IsPositive() {
		fees = round2(e.serviceFee)
	}

	taxes := round2(base.Add(taxableAddOns).Add(fees).Mul(e.taxRate))
	discounts := decimal.Zero
	total := round2(base.Add(addOns).Add(fees).Add(taxes).Sub(discounts))

	return models.PriceBreakdown{
		Base:         base.InexactFloat64(),
		AddOns:       addOns.InexactFloat64(),
		Fees:         fees.InexactFloat64(),
		Taxes:        taxes.InexactFloat64(),
		Discounts:    discounts.InexactFloat64(),
		Total:        total.InexactFloat64(),
		Currency:     e.currency,
		AppliedRules: applied,
	}
}

func (e *Engine) addOns(res *models.Resource, item models.BookingItem, hours decimal.Decimal) (total, taxable decimal.Decimal) {
	for _, sel := range item.AddOns {
		addOn := res.FindAddOn(sel.AddOnID)
		if addOn == nil {
			continue
		}
		qty := decimal.NewFromInt(int64(max(1, sel.Quantity)))
		price := dec(addOn.Price)

		var amount decimal.Decimal
		switch addOn.PricingType {
		case models.AddOnPerHour:
			amount = price.Mul(hours).Mul(qty)
		case models.AddOnPerAttendee:
			amount = price.Mul(decimal.NewFromInt(int64(max(1, item.Attendees)))).Mul(qty)
		default:
			amount = price.Mul(qty)
		}
		amount = round2(amount)

		total = total.Add(amount)
		if addOn.Taxable() {
			taxable = taxable.Add(amount)
		}
	}
	return total, taxable
}

// MultiQuote prices every item. An item whose resource cannot be resolved
// gets a zero breakdown and an error note instead of failing the batch.
func (e *Engine) MultiQuote(ctx context.Context, items []models.BookingItem, customerTier string) *models.MultiQuote {
	out := &models.MultiQuote{
		Items:    make([]models.ItemQuote, 0, len(items)),
		Currency: e.currency,
	}
	total := decimal.Zero

	for _, item := range items {
		res, err := e.resources.Get(ctx, item.ResourceID)
		if err != nil || res == nil {
			e.logger.Info().Err(err).Str("resource_id", item.ResourceID).Msg("unpriceable quote item")
			metrics.IncQuote("unpriced")
			out.Items = append(out.Items, models.ItemQuote{
				ResourceID: item.ResourceID,
				Breakdown:  e.zero(),
				Error:      "resource not found",
			})
			continue
		}

		bd := e.Quote(res, item, customerTier)
		metrics.IncQuote("priced")
		total = total.Add(dec(bd.Total))
		out.Items = append(out.Items, models.ItemQuote{ResourceID: item.ResourceID, Breakdown: bd})
	}

	out.Total = round2(total).InexactFloat64()
	return out
}

func (e *Engine) zero() models.PriceBreakdown {
	return models.PriceBreakdown{Currency: e.currency, AppliedRules: []string{}}
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// round2 rounds half away from zero, which is half-up for the non-negative
// amounts priced here.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func durationHours(d time.Duration) decimal.Decimal {
	if d <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(d)).Div(decimal.NewFromInt(int64(time.Hour)))
}

// Sum adds monetary amounts exactly and rounds the result to cents.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(dec(v))
	}
	return round2(total).InexactFloat64()
}
