package shipping

import (
	"time"

	"storefront-service/internal/apperr"
)

// EstimatorConfig controls processing-time and business-day counting.
type EstimatorConfig struct {
	// CutoffHour: orders at or after this hour take one extra processing day.
	CutoffHour int
	// MinProcessingDays before the parcel reaches the courier.
	MinProcessingDays int
	// WorkingDays is the set of weekdays on which parcels move.
	WorkingDays map[time.Weekday]bool
	// Holidays as YYYY-MM-DD strings, matched exactly.
	Holidays map[string]bool
}

// DefaultWorkingDays is Monday through Friday.
func DefaultWorkingDays() map[time.Weekday]bool {
	return map[time.Weekday]bool{
		time.Monday:    true,
		time.Tuesday:   true,
		time.Wednesday: true,
		time.Thursday:  true,
		time.Friday:    true,
	}
}

// DeliveryWindow is an estimated delivery date range as local calendar dates.
type DeliveryWindow struct {
	MinDate string `json:"min_date"`
	MaxDate string `json:"max_date"`
}

// Estimator computes delivery windows by stepping over business days.
type Estimator struct {
	cfg EstimatorConfig
}

// NewEstimator rejects an empty working-day set: business-day stepping would
// never terminate without at least one working weekday.
func NewEstimator(cfg EstimatorConfig) (*Estimator, error) {
	working := false
	for _, ok := range cfg.WorkingDays {
		if ok {
			working = true
			break
		}
	}
	if !working {
		return nil, apperr.New(apperr.CodeConfiguration, "working-day set must not be empty")
	}
	return &Estimator{cfg: cfg}, nil
}

// Estimate computes the delivery window for a zone relative to now. Pure date
// arithmetic over the zone's day range, processing days and the cutoff hour.
func (e *Estimator) Estimate(zone Zone, now time.Time) DeliveryWindow {
	processing := e.cfg.MinProcessingDays
	if now.Hour() >= e.cfg.CutoffHour {
		processing++
	}

	return DeliveryWindow{
		MinDate: e.addBusinessDays(now, processing+zone.MinDays).Format("2006-01-02"),
		MaxDate: e.addBusinessDays(now, processing+zone.MaxDays).Format("2006-01-02"),
	}
}

// addBusinessDays walks forward one calendar day at a time, counting only
// working weekdays that are not holidays.
func (e *Estimator) addBusinessDays(from time.Time, days int) time.Time {
	date := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	added := 0
	for added < days {
		date = date.AddDate(0, 0, 1)
		if !e.cfg.WorkingDays[date.Weekday()] {
			continue
		}
		if e.cfg.Holidays[date.Format("2006-01-02")] {
			continue
		}
		added++
	}
	return date
}
