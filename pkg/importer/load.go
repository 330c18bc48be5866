package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/history-river/pkg/store"
)

// Store is the persistence Load writes to.
type Store interface {
	GetDynasty(ctx context.Context, id string) (*store.Dynasty, error)
	CreateDynasty(ctx context.Context, dynasty *store.Dynasty) error
	FindDynastyForYear(ctx context.Context, year int) (*store.Dynasty, error)
	EventExists(ctx context.Context, year int, title string) (bool, error)
	CreateEvent(ctx context.Context, event *store.Event) error
}

// Report counts what Load did.
type Report struct {
	DynastiesCreated int
	DynastiesSkipped int
	EventsCreated    int
	EventsSkipped    int
	EventsLinked     int
	Failed           int
}

// SourceReference marks events created by the dataset import.
const SourceReference = "historyData.ts"

// Load inserts the dataset. Dynasties go first so events can be linked to
// the latest-starting dynasty that contains their year. Existing dynasties
// (by id) and events (by year and title) are left untouched. Invalid
// records are counted in Failed and skipped; only store failures abort.
func Load(ctx context.Context, s Store, ds *Dataset) (Report, error) {
	logger := log.With().Str("component", "importer").Logger()
	var report Report

	for _, rec := range ds.Dynasties {
		_, err := s.GetDynasty(ctx, rec.ID)
		if err == nil {
			report.DynastiesSkipped++
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return report, fmt.Errorf("lookup dynasty %s: %w", rec.ID, err)
		}

		err = s.CreateDynasty(ctx, &store.Dynasty{
			ID:          rec.ID,
			Name:        rec.Name,
			ChineseName: rec.ChineseName,
			StartYear:   rec.StartYear,
			EndYear:     rec.EndYear,
			Color:       rec.Color,
			Description: rec.Description,
		})
		switch {
		case err == nil:
			report.DynastiesCreated++
		case errors.Is(err, store.ErrInvalidInput):
			report.Failed++
			logger.Warn().Err(err).Str("dynasty", rec.ID).Msg("Skipping invalid dynasty")
		case errors.Is(err, store.ErrDuplicateKey):
			report.DynastiesSkipped++
		default:
			return report, fmt.Errorf("create dynasty %s: %w", rec.ID, err)
		}
	}

	for _, rec := range ds.Events {
		exists, err := s.EventExists(ctx, rec.Year, rec.Title)
		if err != nil {
			return report, fmt.Errorf("check event %d %s: %w", rec.Year, rec.Title, err)
		}
		if exists {
			report.EventsSkipped++
			continue
		}

		eventType := store.EventType(rec.Type)
		event := &store.Event{
			Year:            rec.Year,
			Title:           rec.Title,
			Type:            eventType,
			Description:     fmt.Sprintf("%s（%s）", rec.Title, eventType.DisplayName()),
			Importance:      rec.Importance,
			SourceReference: SourceReference,
		}

		dynasty, err := s.FindDynastyForYear(ctx, rec.Year)
		switch {
		case err == nil:
			event.DynastyID = &dynasty.ID
			report.EventsLinked++
		case !errors.Is(err, store.ErrNotFound):
			return report, fmt.Errorf("find dynasty for %d: %w", rec.Year, err)
		}

		err = s.CreateEvent(ctx, event)
		switch {
		case err == nil:
			report.EventsCreated++
		case errors.Is(err, store.ErrInvalidInput):
			if event.DynastyID != nil {
				report.EventsLinked--
			}
			report.Failed++
			logger.Warn().Err(err).Int("year", rec.Year).Str("title", rec.Title).Msg("Skipping invalid event")
		default:
			return report, fmt.Errorf("create event %d %s: %w", rec.Year, rec.Title, err)
		}
	}

	logger.Info().
		Int("dynasties_created", report.DynastiesCreated).
		Int("dynasties_skipped", report.DynastiesSkipped).
		Int("events_created", report.EventsCreated).
		Int("events_skipped", report.EventsSkipped).
		Int("events_linked", report.EventsLinked).
		Int("failed", report.Failed).
		Msg("Import complete")

	return report, nil
}
