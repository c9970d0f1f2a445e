package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/seatwatch/seatwatch-backend/internal/config"
	"github.com/seatwatch/seatwatch-backend/internal/model"
	"github.com/seatwatch/seatwatch-backend/internal/repository"
)

const statsCacheTTL = 60 * time.Second

// StatsService serves the public site summary, cached briefly in Redis so the
// landing page does not issue two counts per hit.
type StatsService struct {
	courseRepo *repository.CourseRepository
	userRepo   *repository.UserRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

func NewStatsService(courseRepo *repository.CourseRepository, userRepo *repository.UserRepository, rdb *redis.Client, log zerolog.Logger) *StatsService {
	return &StatsService{
		courseRepo: courseRepo,
		userRepo:   userRepo,
		rdb:        rdb,
		log:        log.With().Str("component", "stats_service").Logger(),
	}
}

// GetStats returns watched-course and user totals.
func (s *StatsService) GetStats(ctx context.Context) (model.Stats, error) {
	key := config.CacheKey.StatsSummaryKey()

	cached, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var stats model.Stats
		if jerr := json.Unmarshal([]byte(cached), &stats); jerr == nil {
			return stats, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Stats cache read failed")
	}

	courses, err := s.courseRepo.CountWatched(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	users, err := s.userRepo.Count(ctx)
	if err != nil {
		return model.Stats{}, err
	}

	stats := model.Stats{CoursesWatched: courses, UsersTotal: users}
	if raw, jerr := json.Marshal(stats); jerr == nil {
		if serr := s.rdb.Set(ctx, key, raw, statsCacheTTL).Err(); serr != nil {
			s.log.Warn().Err(serr).Msg("Stats cache write failed")
		}
	}
	return stats, nil
}
