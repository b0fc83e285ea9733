package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/edly-io/forum-sub001/internal/models"
	"github.com/edly-io/forum-sub001/internal/store"
)

// StatsService reads the per-course engagement counters and rebuilds them
// from the content collection on demand.
type StatsService struct {
	store store.Store
}

func NewStatsService(st store.Store) *StatsService {
	return &StatsService{store: st}
}

// StatsPage is one page of per-user course stats.
type StatsPage struct {
	UserStats []*models.CourseStat
	Page      int
	NumPages  int
	Count     int64
}

// List pages a course's stats. sortKey is one of activity, recency,
// flagged, or empty for activity.
func (s *StatsService) List(ctx context.Context, courseID, sortKey string, page, perPage int) (*StatsPage, error) {
	sort, ok := store.ParseStatsSort(sortKey)
	if !ok {
		return nil, store.Validationf("invalid sort_key: %q", sortKey)
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}

	count, err := s.store.CourseStats().Count(ctx, courseID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.CourseStats().List(ctx, courseID, sort, (page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []*models.CourseStat{}
	}
	return &StatsPage{
		UserStats: stats,
		Page:      page,
		NumPages:  pageCount(count, perPage),
		Count:     count,
	}, nil
}

// Rebuild recomputes every author's counters for a course from the
// content collection and returns the author ids it touched.
func (s *StatsService) Rebuild(ctx context.Context, courseID string) ([]string, error) {
	return rebuildCourseStats(ctx, s.store, courseID)
}

// rebuildCourseStats swaps a course's stats for counts taken from the
// ground truth. Incremental updates drift when writes race or skip; this
// is the settle-up.
func rebuildCourseStats(ctx context.Context, st store.Store, courseID string) ([]string, error) {
	authors, err := st.Content().CourseAuthors(ctx, courseID)
	if err != nil {
		return nil, err
	}

	stats := make([]*models.CourseStat, 0, len(authors))
	for _, authorID := range authors {
		counts, err := st.Content().AuthorCounts(ctx, courseID, authorID)
		if err != nil {
			return nil, err
		}
		username := ""
		switch u, err := st.Users().Get(ctx, authorID); {
		case err == nil:
			username = u.Username
		case !store.IsNotFound(err):
			return nil, err
		}
		stats = append(stats, &models.CourseStat{
			CourseID:       courseID,
			UserID:         authorID,
			Username:       username,
			ActiveFlags:    counts.ActiveFlags,
			InactiveFlags:  counts.InactiveFlags,
			Threads:        counts.Threads,
			Responses:      counts.Responses,
			Replies:        counts.Replies,
			LastActivityAt: counts.LastActivityAt,
		})
	}

	if err := st.CourseStats().ReplaceForCourse(ctx, courseID, stats); err != nil {
		return nil, err
	}
	log.Info().Str("course_id", courseID).Int("users", len(stats)).Msg("course stats rebuilt")
	return authors, nil
}
