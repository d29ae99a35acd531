package core

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/huangsam/ers/schema"
)

// Catalog is the immutable set of metric definitions known to the engine.
type Catalog struct {
	defs map[string]schema.MetricDefinition
}

// NewCatalog builds a catalog from the given definitions.
// Keys must be unique and non-empty, and every kind must be one of the declared kinds.
func NewCatalog(defs ...schema.MetricDefinition) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]schema.MetricDefinition, len(defs))}
	for _, d := range defs {
		key := strings.TrimSpace(d.Key)
		if key == "" {
			return nil, fmt.Errorf("metric definition with label %q has an empty key", d.Label)
		}
		if _, ok := schema.ValidMetricKinds[d.Kind]; !ok {
			return nil, fmt.Errorf("metric %s: invalid kind '%s'", key, d.Kind)
		}
		if _, dup := c.defs[key]; dup {
			return nil, fmt.Errorf("metric %s is defined more than once", key)
		}
		d.Key = key
		if d.Label == "" {
			d.Label = key
		}
		c.defs[key] = d
	}
	return c, nil
}

// KindOf returns the kind of a registered metric.
func (c *Catalog) KindOf(key string) (schema.MetricKind, error) {
	d, ok := c.defs[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", schema.ErrUnknownMetric, key)
	}
	return d.Kind, nil
}

// Lookup returns the full definition of a registered metric.
func (c *Catalog) Lookup(key string) (schema.MetricDefinition, bool) {
	d, ok := c.defs[key]
	return d, ok
}

// Has reports whether the key is registered.
func (c *Catalog) Has(key string) bool {
	_, ok := c.defs[key]
	return ok
}

// Definitions returns all definitions sorted by key.
func (c *Catalog) Definitions() []schema.MetricDefinition {
	keys := slices.Collect(maps.Keys(c.defs))
	sort.Strings(keys)
	out := make([]schema.MetricDefinition, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.defs[k])
	}
	return out
}

// Len returns the number of registered metrics.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// Metric keys of the default marketplace catalog.
const (
	MetricCarbonNeutral       = "carbon_neutral"
	MetricFairWages           = "fair_wages"
	MetricVeganFriendly       = "vegan_friendly"
	MetricRenewableEnergy     = "renewable_energy_pct"
	MetricRecycledPackaging   = "recycled_packaging_pct"
	MetricLocalSourcing       = "local_sourcing_pct"
	MetricResponseRate        = "response_rate_pct"
	MetricRepairability       = "repairability"
	MetricDurability          = "durability"
	MetricWasteReduction      = "waste_reduction"
	MetricCommunityTrust      = "community_trust"
	MetricProductQuality      = "product_quality"
	MetricEthicalSourcing     = "ethical_sourcing"
	MetricCertifications      = "certifications"
	MetricLocalSuppliers      = "local_suppliers"
	MetricVolunteerPrograms   = "volunteer_programs"
	MetricDonationPartners    = "donation_partners"
	MetricAnimalWelfarePolicy = "animal_welfare_policy"
)

// DefaultCatalog returns the marketplace metric set.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		schema.MetricDefinition{Key: MetricCarbonNeutral, Label: "Carbon neutral operations", Kind: schema.BooleanKind},
		schema.MetricDefinition{Key: MetricFairWages, Label: "Pays fair wages", Kind: schema.BooleanKind},
		schema.MetricDefinition{Key: MetricVeganFriendly, Label: "Vegan friendly", Kind: schema.BooleanKind},
		schema.MetricDefinition{Key: MetricAnimalWelfarePolicy, Label: "Animal welfare policy", Kind: schema.BooleanKind},
		schema.MetricDefinition{Key: MetricRenewableEnergy, Label: "Renewable energy share (%)", Kind: schema.PercentageKind},
		schema.MetricDefinition{Key: MetricRecycledPackaging, Label: "Recycled packaging (%)", Kind: schema.PercentageKind},
		schema.MetricDefinition{Key: MetricLocalSourcing, Label: "Locally sourced materials (%)", Kind: schema.PercentageKind},
		schema.MetricDefinition{Key: MetricResponseRate, Label: "Message response rate (%)", Kind: schema.PercentageKind},
		schema.MetricDefinition{Key: MetricRepairability, Label: "Repairability (0-10)", Kind: schema.Bounded0to10Kind},
		schema.MetricDefinition{Key: MetricDurability, Label: "Durability (0-10)", Kind: schema.Bounded0to10Kind},
		schema.MetricDefinition{Key: MetricWasteReduction, Label: "Waste reduction (0-10)", Kind: schema.Bounded0to10Kind},
		schema.MetricDefinition{Key: MetricCommunityTrust, Label: "Community trust (peer rated)", Kind: schema.PeerRatedKind},
		schema.MetricDefinition{Key: MetricProductQuality, Label: "Product quality (peer rated)", Kind: schema.PeerRatedKind},
		schema.MetricDefinition{Key: MetricEthicalSourcing, Label: "Ethical sourcing (peer rated)", Kind: schema.PeerRatedKind},
		schema.MetricDefinition{Key: MetricCertifications, Label: "Certifications held", Kind: schema.StructuredListKind},
		schema.MetricDefinition{Key: MetricLocalSuppliers, Label: "Local suppliers", Kind: schema.StructuredListKind},
		schema.MetricDefinition{Key: MetricVolunteerPrograms, Label: "Volunteer programs", Kind: schema.StructuredListKind},
		schema.MetricDefinition{Key: MetricDonationPartners, Label: "Donation partners", Kind: schema.StructuredListKind},
	)
	if err != nil {
		// The default set is static; a failure here is a programming error.
		panic(err)
	}
	return c
}
