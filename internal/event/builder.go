package event

import (
	"context"
	"fmt"
	"time"

	logx "quakepost/pkg/logx"
)

// Localizer supplies the location-derived fragments of a bulletin.
// Implementations must be pure lookups.
type Localizer interface {
	NearestCity(lat, lon float64) string
	CountryMessage(lat, lon float64) string
	Localize(utc time.Time) time.Time
	SurveyURL(local time.Time, eventID string) string
}

// MapMaker renders the event map image on durable storage.
// Ensure must be idempotent on the event's image path.
type MapMaker interface {
	Ensure(ctx context.Context, lat, lon float64, eventID string) error
	Find(eventID string) string
}

// Builder turns one upstream Record into a Summary. It never fails:
// missing optional fields degrade to their empty rendering, and map
// generation errors are logged, not propagated.
type Builder struct {
	loc  Localizer
	maps MapMaker
	log  logx.Logger
}

func NewBuilder(loc Localizer, maps MapMaker, log logx.Logger) *Builder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Builder{loc: loc, maps: maps, log: log}
}

const bulletinTemplate = "#SISMO ID:%s %s %s TL Magnitud: %s" +
	" Profundidad: %s km, %s, Latitud: %s Longitud:%s." +
	" %s Sintió este sismo (débil, fuerte, muy fuerte)? Cuéntenos en dónde? Repórtelo en %s"

// Build produces a best-effort Summary for the record.
//
// A record with more than one event yields a zero Summary: ambiguous
// batches are not resolved automatically, callers treat the zero value
// as "nothing to publish".
func (b *Builder) Build(ctx context.Context, rec Record) Summary {
	if len(rec.Events) != 1 {
		b.log.Info("record does not hold exactly one event, returning empty summary",
			logx.Int("events", len(rec.Events)))
		return Summary{}
	}

	ev := rec.Events[0]
	status := StatusFromEvaluationMode(ev.EvaluationMode)

	var (
		occurred   time.Time
		localTime  string
		lat, lon   string
		depth      string
		magnitude  string
		city       string
		country    string
		survey     string
		mediaRef   string
		haveOrigin bool
	)
	if o := ev.Origin; o != nil {
		haveOrigin = true
		occurred = o.Time.UTC()
		local := b.loc.Localize(occurred)
		localTime = local.Format("2006-01-02 15:04:05")
		lat = fmt.Sprintf("%.2f", o.Latitude)
		lon = fmt.Sprintf("%.2f", o.Longitude)
		if o.Depth != nil {
			depth = fmt.Sprintf("%.0f", *o.Depth)
		}
		if o.Magnitude != nil {
			magnitude = fmt.Sprintf("%.1f", *o.Magnitude)
		}
		city = b.loc.NearestCity(o.Latitude, o.Longitude)
		country = b.loc.CountryMessage(o.Latitude, o.Longitude)
		survey = b.loc.SurveyURL(local, ev.PublicID)
	}

	if haveOrigin && b.maps != nil {
		if err := b.maps.Ensure(ctx, ev.Origin.Latitude, ev.Origin.Longitude, ev.PublicID); err != nil {
			b.log.Warn("map generation failed",
				logx.String("event_id", ev.PublicID), logx.Err(err))
		}
		mediaRef = b.maps.Find(ev.PublicID)
	}

	text := fmt.Sprintf(bulletinTemplate,
		ev.PublicID, status.Label(), localTime, magnitude,
		depth, city, lat, lon, country, survey)

	return Summary{
		EventID:    ev.PublicID,
		Status:     status,
		OccurredAt: occurred,
		Text:       text,
		MediaRef:   mediaRef,
	}
}
