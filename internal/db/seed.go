package db

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/venue"
)

type seedVenue struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Open     string `yaml:"open"`
	Close    string `yaml:"close"`
	Interval int    `yaml:"slot_interval_minutes"`
	Color    string `yaml:"color"`
}

// ParseVenueSeed reads a YAML list of venues. Hours accept "15:04" or
// "3:04 PM"; a missing value leaves the default in place.
func ParseVenueSeed(r io.Reader) ([]venue.Venue, error) {
	var doc struct {
		Venues []seedVenue `yaml:"venues"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode venue seed: %w", err)
	}

	seen := make(map[string]bool, len(doc.Venues))
	venues := make([]venue.Venue, 0, len(doc.Venues))
	for i, sv := range doc.Venues {
		if sv.ID == "" {
			return nil, fmt.Errorf("venue %d: id is required", i+1)
		}
		if seen[sv.ID] {
			return nil, fmt.Errorf("venue %d: duplicate id %q", i+1, sv.ID)
		}
		seen[sv.ID] = true

		v := venue.Default(sv.ID)
		v.Name = sv.Name
		v.Color = sv.Color
		if sv.Interval != 0 {
			v.SlotIntervalMinutes = sv.Interval
		}
		if sv.Open != "" {
			t, err := datetime.ParseTimeOfDay(sv.Open)
			if err != nil {
				return nil, fmt.Errorf("venue %q open time: %w", sv.ID, err)
			}
			v.OpenTime = t
		}
		if sv.Close != "" {
			t, err := datetime.ParseTimeOfDay(sv.Close)
			if err != nil {
				return nil, fmt.Errorf("venue %q close time: %w", sv.ID, err)
			}
			v.CloseTime = t
		}
		venues = append(venues, v)
	}
	return venues, nil
}

// SeedVenuesFile upserts every venue in the seed file at path.
func (s *Store) SeedVenuesFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open venue seed: %w", err)
	}
	defer f.Close()

	venues, err := ParseVenueSeed(f)
	if err != nil {
		return 0, err
	}
	err = s.db.RunInTx(ctx, func(tx *DB) error {
		for _, v := range venues {
			if err := tx.Queries.UpsertVenue(ctx, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int("venue_count", len(venues)).Str("path", path).Msg("Venues seeded")
	return len(venues), nil
}
