package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/alarm-display/internal/domain"
)

// AlarmTransformer implements Transformer using the domain parsers with
// optional geocoding enrichment.
type AlarmTransformer struct {
	opts     domain.Options
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates an AlarmTransformer. Pass a nil geocoder to disable
// geocoding enrichment.
func NewTransformer(opts domain.Options, geocoder domain.Geocoder, logger *slog.Logger) *AlarmTransformer {
	return &AlarmTransformer{
		opts:     opts,
		geocoder: geocoder,
		logger:   logger,
	}
}

func (t *AlarmTransformer) Transform(ctx context.Context, raw domain.RawPayload) (domain.Alarm, error) {
	alarm, err := domain.Parse(raw, t.opts, t.logger)
	if err != nil {
		return domain.Alarm{}, err
	}
	return domain.EnrichWithGeocoding(ctx, alarm, t.geocoder, t.logger), nil
}
