package billing

import (
	"sort"

	appconfig "github.com/m3rciful/docshelf/app/config"
)

// Plan is a purchasable subscription option.
type Plan = appconfig.Plan

// Catalog is the set of configured plans keyed by duration.
type Catalog struct {
	plans []Plan
}

// NewCatalog builds a catalog ordered by duration. Later duplicates of the
// same duration are ignored.
func NewCatalog(plans []Plan) Catalog {
	seen := make(map[int]struct{}, len(plans))
	out := make([]Plan, 0, len(plans))
	for _, p := range plans {
		if _, dup := seen[p.Months]; dup {
			continue
		}
		seen[p.Months] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Months < out[j].Months })
	return Catalog{plans: out}
}

// Plans returns the plans ordered by duration.
func (c Catalog) Plans() []Plan {
	return append([]Plan(nil), c.plans...)
}

// Lookup finds the plan for months.
func (c Catalog) Lookup(months int) (Plan, bool) {
	for _, p := range c.plans {
		if p.Months == months {
			return p, true
		}
	}
	return Plan{}, false
}

// Match checks that the intent names a configured plan at its configured price.
func (c Catalog) Match(in Intent) (Plan, error) {
	p, ok := c.Lookup(in.Months)
	if !ok {
		return Plan{}, invalid(CodeUnknownPlan, "This subscription plan is no longer offered.")
	}
	if p.Price != in.Price {
		return Plan{}, invalid(CodePriceMismatch, "The price of this plan has changed. Please request a new invoice.")
	}
	return p, nil
}
