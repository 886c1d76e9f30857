package health

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mvasic/vitalog/internal/activities"
	"github.com/mvasic/vitalog/internal/profiles"
	"github.com/mvasic/vitalog/internal/telemetry/metrics"
	"github.com/mvasic/vitalog/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=health_mocks_test.go -package=health_test

const (
	// summaries are cheap to recompute, keep the cache TTL short
	summaryCacheExpireSeconds = 60 * 5
	summaryCacheSizeBytes     = 10 * 1024 * 1024
)

type activitiesRepo interface {
	ListAll(ctx context.Context, params activities.ActivityParams) ([]activities.Activity, error)
}

type profilesRepo interface {
	Get(ctx context.Context, id int) (*profiles.Profile, error)
}

// Summary bundles all computed reports for a profile in one response
type Summary struct {
	ProfileID       int              `json:"profileId"`
	Distribution    []Distribution   `json:"distribution"`
	Metrics         Metrics          `json:"metrics"`
	Recommendations []Recommendation `json:"recommendations"`
	Score           Score            `json:"score"`
	GeneratedAt     time.Time        `json:"generatedAt"`
}

type Analyzer struct {
	activitiesRepo activitiesRepo
	profilesRepo   profilesRepo
	cache          *freecache.Cache
	metrics        *metrics.Manager
	// NowFunc can be swapped out in tests for deterministic windows
	NowFunc func() time.Time
}

func NewAnalyzer(
	activitiesRepo activitiesRepo,
	profilesRepo profilesRepo,
	metricsManager *metrics.Manager,
) *Analyzer {
	return &Analyzer{
		activitiesRepo: activitiesRepo,
		profilesRepo:   profilesRepo,
		cache:          freecache.NewCache(summaryCacheSizeBytes),
		metrics:        metricsManager,
		NowFunc:        time.Now,
	}
}

func (a *Analyzer) Distribution(ctx context.Context, profileID int) (_ []Distribution, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "healthAnalyzer.distribution")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	acts, err := a.activitiesRepo.ListAll(ctx, activities.ActivityParams{ProfileID: profileID})
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	a.metrics.CounterHealthReports.Inc()
	return ComputeDistribution(acts), nil
}

func (a *Analyzer) Metrics(ctx context.Context, profileID int) (_ Metrics, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "healthAnalyzer.metrics")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	acts, err := a.weekOfActivities(ctx, profileID)
	if err != nil {
		return Metrics{}, err
	}

	a.metrics.CounterHealthReports.Inc()
	return ComputeMetrics(acts, a.NowFunc()), nil
}

func (a *Analyzer) Recommendations(ctx context.Context, profileID int) (_ []Recommendation, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "healthAnalyzer.recommendations")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	profile, err := a.profilesRepo.Get(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	acts, err := a.weekOfActivities(ctx, profileID)
	if err != nil {
		return nil, err
	}

	a.metrics.CounterHealthReports.Inc()
	return GenerateRecommendations(ComputeMetrics(acts, a.NowFunc()), *profile)
}

func (a *Analyzer) Score(ctx context.Context, profileID int) (_ Score, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "healthAnalyzer.score")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	profile, err := a.profilesRepo.Get(ctx, profileID)
	if err != nil {
		return Score{}, fmt.Errorf("get profile: %w", err)
	}

	acts, err := a.weekOfActivities(ctx, profileID)
	if err != nil {
		return Score{}, err
	}

	a.metrics.CounterHealthReports.Inc()
	return ComputeScore(ComputeMetrics(acts, a.NowFunc()), *profile)
}

// Summary computes all reports at once, results are cached per profile
// and dropped when the activity log changes
func (a *Analyzer) Summary(ctx context.Context, profileID int) (_ *Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "healthAnalyzer.summary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cacheKey := summaryCacheKey(profileID)
	if summaryBytes, err := a.cache.Get(cacheKey); err == nil {
		var summary Summary
		if err = json.Unmarshal(summaryBytes, &summary); err == nil {
			log.Tracef("found health summary for profile %d in cache", profileID)
			return &summary, nil
		}
		log.Errorf("failed to unmarshal cached health summary for profile %d: %s", profileID, err)
	}

	profile, err := a.profilesRepo.Get(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	allActs, err := a.activitiesRepo.ListAll(ctx, activities.ActivityParams{ProfileID: profileID})
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	now := a.NowFunc()
	m := ComputeMetrics(allActs, now)

	recommendations, err := GenerateRecommendations(m, *profile)
	if err != nil {
		return nil, err
	}
	score, err := ComputeScore(m, *profile)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		ProfileID:       profileID,
		Distribution:    ComputeDistribution(allActs),
		Metrics:         m,
		Recommendations: recommendations,
		Score:           score,
		GeneratedAt:     now,
	}

	a.metrics.CounterHealthReports.Inc()

	summaryBytes, err := json.Marshal(summary)
	if err != nil {
		log.Errorf("failed to marshal health summary for profile %d: %s", profileID, err)
		return summary, nil
	}
	if err := a.cache.Set(cacheKey, summaryBytes, summaryCacheExpireSeconds); err != nil {
		log.Errorf("failed to cache health summary for profile %d: %s", profileID, err)
	}

	return summary, nil
}

func (a *Analyzer) InvalidateProfile(profileID int) {
	a.cache.Del(summaryCacheKey(profileID))
}

func (a *Analyzer) weekOfActivities(ctx context.Context, profileID int) ([]activities.Activity, error) {
	weekAgo := a.NowFunc().AddDate(0, 0, -7)
	// same day-truncated lower bound as the metrics window
	weekAgo = time.Date(weekAgo.Year(), weekAgo.Month(), weekAgo.Day(), 0, 0, 0, 0, weekAgo.Location())
	acts, err := a.activitiesRepo.ListAll(ctx, activities.ActivityParams{
		ProfileID: profileID,
		From:      &weekAgo,
	})
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return acts, nil
}

func summaryCacheKey(profileID int) []byte {
	return []byte(fmt.Sprintf("summary::%d", profileID))
}
