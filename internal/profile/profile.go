// Package profile reads user personalization data from the main
// application database.
//
// The profile source is strictly best-effort: a missing user, a missing
// view, or an unreachable database all degrade to "no profile" and the
// query pipeline continues without personalization. The two cases are
// distinguished in logs only, never in behavior.
package profile

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spark-health/sparkai/internal/log"
)

// Profile is one user's personalization record as exposed by the
// rag_data_view aggregation view.
type Profile struct {
	Name           string
	Role           string
	ProgramTitle   string
	ProgramContent string
	Location       string
	Region         string
	News           string
	WaterTestNote  string
	WaterQuality   string
	WaterBodyName  string
	GlobalAlert    bool
	RecentReport   string
}

// String renders the profile in a fixed field order for prompt
// interpolation. The order never changes between calls, so identical
// profiles always produce byte-identical prompt sections.
func (p *Profile) String() string {
	out := "name: " + p.Name +
		"\nrole: " + p.Role +
		"\nprogram_title: " + p.ProgramTitle +
		"\nprogram_content: " + p.ProgramContent +
		"\nlocation: " + p.Location +
		"\nregion: " + p.Region +
		"\nnews: " + p.News +
		"\nwater_test_note: " + p.WaterTestNote +
		"\nwater_quality: " + p.WaterQuality +
		"\nwater_body_name: " + p.WaterBodyName +
		"\nglobal_alert: "
	if p.GlobalAlert {
		out += "true"
	} else {
		out += "false"
	}
	return out + "\nrecent_report: " + p.RecentReport
}

// Store reads profiles from the main application database. A Store with
// a nil pool is valid and reports every user as absent; the service runs
// without personalization when the main database is not configured.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// New creates a Store. pool may be nil.
func New(pool *pgxpool.Pool, logger log.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// Close releases the pool if one is held.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const fetchQuery = `
SELECT
    user_name, user_role, story_titles, story_contents,
    user_hotspot_locations, user_hotspot_names, user_hotspot_descriptions,
    watertest_notes, water_qualities, waterbody_names,
    has_global_alert, recent_reports
FROM rag_data_view
WHERE user_id = $1`

// Fetch returns the profile for userID, or ok=false when no profile is
// available for any reason. Fetch never fails the caller: database
// errors are logged and reported as absence.
func (s *Store) Fetch(ctx context.Context, userID string) (*Profile, bool) {
	if userID == "" {
		return nil, false
	}
	if s.pool == nil {
		s.logger.Debug("profile database not configured, skipping personalization")
		return nil, false
	}

	var (
		name, role, programTitle, programContent pgtype.Text
		location, region, news                   pgtype.Text
		waterTestNote, waterQuality              pgtype.Text
		waterBodyName, recentReport              pgtype.Text
		globalAlert                              pgtype.Bool
	)

	err := s.pool.QueryRow(ctx, fetchQuery, userID).Scan(
		&name, &role, &programTitle, &programContent,
		&location, &region, &news,
		&waterTestNote, &waterQuality, &waterBodyName,
		&globalAlert, &recentReport,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		s.logger.Debug("no profile found for user", "user_id", userID)
		return nil, false
	case err != nil:
		s.logger.Warn("profile lookup failed, continuing without personalization",
			"user_id", userID, "error", err)
		return nil, false
	}

	return &Profile{
		Name:           name.String,
		Role:           role.String,
		ProgramTitle:   programTitle.String,
		ProgramContent: programContent.String,
		Location:       location.String,
		Region:         region.String,
		News:           news.String,
		WaterTestNote:  waterTestNote.String,
		WaterQuality:   waterQuality.String,
		WaterBodyName:  waterBodyName.String,
		GlobalAlert:    globalAlert.Bool,
		RecentReport:   recentReport.String,
	}, true
}
