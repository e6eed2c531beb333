package excursion

import "github.com/BearBump/ColdTrack/internal/models"

// Resolve returns the threshold band for a shipment. A shipment without
// configured bounds gets an unbounded band that never alerts.
func Resolve(sh *models.Shipment) models.Band {
	if sh == nil {
		return models.Band{}
	}
	return sh.Band
}

// Classify reports whether a temperature is an excursion against the band.
// Граница считается нормой: ровно min или ровно max — не алерт.
func Classify(temperature float64, band models.Band) bool {
	if band.Min != nil && temperature < *band.Min {
		return true
	}
	if band.Max != nil && temperature > *band.Max {
		return true
	}
	return false
}
