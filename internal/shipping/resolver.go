package shipping

import (
	"regexp"
	"strings"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
)

var postalCodeIN = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// Resolver maps a postal address to exactly one shipping zone. Resolution is
// total: a domestic default and an international default always exist, so
// every syntactically valid address resolves.
type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// DetectZone resolves the zone for an address. Deterministic, pure function
// of the address and the static zone table.
func (r *Resolver) DetectZone(addr models.Address) Zone {
	if strings.EqualFold(addr.Country, r.cfg.HomeCountry) {
		for _, zone := range r.cfg.SpecialZones {
			if matchesRegion(zone, addr.State) {
				return zone
			}
		}
		return r.cfg.DomesticDefault
	}

	for _, zone := range r.cfg.InternationalZones {
		if r.cfg.containsCountry(zone, addr.Country) {
			return zone
		}
	}
	return r.cfg.InternationalDefault
}

// matchesRegion reports whether the address state names one of the zone's
// regions. Case-insensitive substring match in either direction, so both
// "Jammu and Kashmir" and "Kashmir" hit the kashmir zone.
func matchesRegion(zone Zone, state string) bool {
	state = strings.ToLower(strings.TrimSpace(state))
	if state == "" {
		return false
	}
	for _, region := range zone.Regions {
		region = strings.ToLower(region)
		if strings.Contains(state, region) || strings.Contains(region, state) {
			return true
		}
	}
	return false
}

// ValidateAddress checks required fields and the home-country postal format.
func (r *Resolver) ValidateAddress(addr models.Address) error {
	switch {
	case strings.TrimSpace(addr.City) == "":
		return apperr.New(apperr.CodeValidation, "city is required")
	case strings.TrimSpace(addr.State) == "":
		return apperr.New(apperr.CodeValidation, "state is required")
	case strings.TrimSpace(addr.Country) == "":
		return apperr.New(apperr.CodeValidation, "country is required")
	case strings.TrimSpace(addr.PostalCode) == "":
		return apperr.New(apperr.CodeValidation, "postal code is required")
	}
	if strings.EqualFold(addr.Country, r.cfg.HomeCountry) && !postalCodeIN.MatchString(addr.PostalCode) {
		return apperr.New(apperr.CodeValidation, "postal code must be a valid 6-digit PIN code")
	}
	return nil
}
