package shipping

import "strings"

// Zone is a configured shipping-rate and delivery-time bucket keyed by
// country/region. Zones are static configuration, never persisted per order.
type Zone struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	Description           string   `json:"description"`
	Countries             []string `json:"countries"`
	Regions               []string `json:"regions,omitempty"`
	BaseRate              float64  `json:"base_rate"`
	FreeShippingThreshold float64  `json:"free_shipping_threshold"`
	MinDays               int      `json:"min_days"`
	MaxDays               int      `json:"max_days"`
	International         bool     `json:"international"`
	Active                bool     `json:"active"`
}

// Config is the immutable zone table injected into the resolver and
// calculator. Tests substitute alternate tables.
type Config struct {
	HomeCountry string
	// SpecialZones are domestic region-matched zones, most specific first.
	SpecialZones []Zone
	// DomesticDefault matches any home-country address no special zone claims.
	DomesticDefault Zone
	// InternationalZones match by exact country-code membership.
	InternationalZones []Zone
	// InternationalDefault matches any foreign address no listed zone claims.
	InternationalDefault Zone
}

// Zones returns every configured zone in resolution order.
func (c Config) Zones() []Zone {
	zones := make([]Zone, 0, len(c.SpecialZones)+len(c.InternationalZones)+2)
	zones = append(zones, c.SpecialZones...)
	zones = append(zones, c.DomesticDefault)
	zones = append(zones, c.InternationalZones...)
	zones = append(zones, c.InternationalDefault)
	return zones
}

// ZoneByID looks up a zone by id.
func (c Config) ZoneByID(id string) (Zone, bool) {
	for _, z := range c.Zones() {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

func (c Config) containsCountry(zone Zone, country string) bool {
	for _, cc := range zone.Countries {
		if strings.EqualFold(cc, country) {
			return true
		}
	}
	return false
}

// DefaultConfig is the production zone table: an India storefront with a
// discounted Kashmir zone, a metro zone, a rest-of-country default and two
// international buckets.
func DefaultConfig() Config {
	return Config{
		HomeCountry: "IN",
		SpecialZones: []Zone{
			{
				ID:                    "kashmir",
				Name:                  "Kashmir Valley",
				Description:           "Jammu, Kashmir and Ladakh with subsidised rates",
				Countries:             []string{"IN"},
				Regions:               []string{"Jammu and Kashmir", "Ladakh"},
				BaseRate:              50,
				FreeShippingThreshold: 2000,
				MinDays:               5,
				MaxDays:               9,
				Active:                true,
			},
			{
				ID:                    "metro-india",
				Name:                  "Metro India",
				Description:           "Major metropolitan regions",
				Countries:             []string{"IN"},
				Regions:               []string{"Delhi", "Maharashtra", "Karnataka", "Tamil Nadu", "West Bengal", "Telangana"},
				BaseRate:              60,
				FreeShippingThreshold: 1000,
				MinDays:               2,
				MaxDays:               4,
				Active:                true,
			},
		},
		DomesticDefault: Zone{
			ID:                    "rest-of-india",
			Name:                  "Rest of India",
			Description:           "All other Indian states and territories",
			Countries:             []string{"IN"},
			BaseRate:              90,
			FreeShippingThreshold: 1000,
			MinDays:               4,
			MaxDays:               7,
			Active:                true,
		},
		InternationalZones: []Zone{
			{
				ID:                    "south-asia",
				Name:                  "South Asia",
				Description:           "Neighbouring countries",
				Countries:             []string{"NP", "LK", "BD", "BT", "MV"},
				BaseRate:              800,
				FreeShippingThreshold: 10000,
				MinDays:               7,
				MaxDays:               12,
				International:         true,
				Active:                true,
			},
			{
				ID:                    "gulf",
				Name:                  "Gulf States",
				Description:           "Gulf cooperation council countries",
				Countries:             []string{"AE", "SA", "QA", "KW", "OM", "BH"},
				BaseRate:              1200,
				FreeShippingThreshold: 12000,
				MinDays:               8,
				MaxDays:               14,
				International:         true,
				Active:                true,
			},
		},
		InternationalDefault: Zone{
			ID:                    "international",
			Name:                  "International",
			Description:           "All other destinations",
			Countries:             nil,
			BaseRate:              1500,
			FreeShippingThreshold: 15000,
			MinDays:               10,
			MaxDays:               21,
			International:         true,
			Active:                true,
		},
	}
}
