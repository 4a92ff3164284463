package shipping

import (
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Quote is the shipping cost and delivery estimate for one address and order
// total.
type Quote struct {
	Zone              Zone           `json:"zone"`
	ShippingCost      float64        `json:"shipping_cost"`
	IsFreeShipping    bool           `json:"is_free_shipping"`
	EstimatedDelivery DeliveryWindow `json:"estimated_delivery"`
	CourierPartner    string         `json:"courier_partner"`
}

// Calculator combines zone resolution, estimation and courier selection.
type Calculator struct {
	resolver  *Resolver
	estimator *Estimator
	cfg       Config
	// first configured courier is used per leg; selection is static, not
	// load-balanced
	domesticCouriers      []string
	internationalCouriers []string
	now                   func() time.Time
	logger                *zap.Logger
}

func NewCalculator(
	cfg Config,
	estimator *Estimator,
	domesticCouriers, internationalCouriers []string,
) *Calculator {
	return &Calculator{
		resolver:              NewResolver(cfg),
		estimator:             estimator,
		cfg:                   cfg,
		domesticCouriers:      domesticCouriers,
		internationalCouriers: internationalCouriers,
		now:                   time.Now,
		logger:                util.GetLogger(),
	}
}

// Calculate produces a shipping quote. Cost is zero once the order total
// reaches the zone's free-shipping threshold.
func (c *Calculator) Calculate(addr models.Address, orderTotal float64) (*Quote, error) {
	if err := c.resolver.ValidateAddress(addr); err != nil {
		return nil, err
	}

	zone := c.resolver.DetectZone(addr)
	if !zone.Active {
		return nil, apperr.Newf(apperr.CodeValidation, "shipping to %s is currently unavailable", zone.Name)
	}

	cost := zone.BaseRate
	free := orderTotal >= zone.FreeShippingThreshold
	if free {
		cost = 0
	}

	quote := &Quote{
		Zone:              zone,
		ShippingCost:      cost,
		IsFreeShipping:    free,
		EstimatedDelivery: c.estimator.Estimate(zone, c.now()),
		CourierPartner:    c.courierFor(zone),
	}

	util.ShippingQuotesTotal.WithLabelValues(zone.ID).Inc()
	c.logger.Debug("Shipping quote computed",
		zap.String("zone", zone.ID),
		zap.Float64("cost", cost),
		zap.Bool("free", free))

	return quote, nil
}

func (c *Calculator) courierFor(zone Zone) string {
	couriers := c.domesticCouriers
	if zone.International {
		couriers = c.internationalCouriers
	}
	if len(couriers) == 0 {
		return ""
	}
	return couriers[0]
}

// DetectZone exposes raw zone resolution.
func (c *Calculator) DetectZone(addr models.Address) Zone {
	return c.resolver.DetectZone(addr)
}

// ValidateAddress exposes address validation.
func (c *Calculator) ValidateAddress(addr models.Address) error {
	return c.resolver.ValidateAddress(addr)
}

// IsServiceable reports whether the address resolves to an active zone.
func (c *Calculator) IsServiceable(addr models.Address) bool {
	if err := c.resolver.ValidateAddress(addr); err != nil {
		return false
	}
	return c.resolver.DetectZone(addr).Active
}

// ListZones returns all configured zones.
func (c *Calculator) ListZones() []Zone {
	return c.cfg.Zones()
}

// ZoneByID looks up a zone by id.
func (c *Calculator) ZoneByID(id string) (Zone, error) {
	zone, ok := c.cfg.ZoneByID(id)
	if !ok {
		return Zone{}, apperr.Newf(apperr.CodeNotFound, "shipping zone not found: %s", id)
	}
	return zone, nil
}
