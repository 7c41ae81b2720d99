package domain

import (
	"context"
	"log/slog"
	"strings"
)

// EnrichWithGeocoding fills in coordinates for alarms that arrived without
// them, e.g. pager telegrams lacking the coordinate token. If geocoder is nil
// or geocoding fails, the alarm is returned unchanged.
func EnrichWithGeocoding(ctx context.Context, a Alarm, geocoder Geocoder, logger *slog.Logger) Alarm {
	if geocoder == nil || a.HasCoordinates() || a.FallbackText != "" {
		return a
	}
	if a.Street == "" || a.City == "" {
		return a
	}

	address := strings.TrimSpace(a.Street + " " + a.HouseNumber)
	city := strings.TrimSpace(a.PostalCode + " " + a.City)

	result, err := geocoder.ForwardGeocode(ctx, address, city)
	if err != nil {
		logger.Warn("forward geocoding failed",
			"number", a.Number,
			"address", address,
			"city", city,
			"error", err,
		)
		return a
	}
	if result.Lat == 0 && result.Lon == 0 {
		logger.Info("forward geocoding found nothing", "number", a.Number, "address", address)
		return a
	}

	a.Lat = result.Lat
	a.Lon = result.Lon
	logger.Info("alarm geocoded",
		"number", a.Number,
		"formatted_address", result.FormattedAddress,
		"confidence", result.Confidence,
	)
	return a
}
