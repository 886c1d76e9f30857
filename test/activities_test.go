package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/mvasic/vitalog/internal/activities"
	"github.com/mvasic/vitalog/internal/health"
	"github.com/mvasic/vitalog/internal/profiles"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestActivities() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t := s.T()
	token := s.doLogin(ctx)

	profileID := s.createProfile(ctx, gofakeit.Name(), gofakeit.Email(), 35)

	addActivity := func(title string, tags []string, durationMinutes float64, date time.Time) activities.Activity {
		actJson, err := json.Marshal(map[string]any{
			"profileId":       profileID,
			"title":           title,
			"tags":            tags,
			"durationMinutes": durationMinutes,
			"date":            date.Format(time.RFC3339),
		})
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/activities", serverEndpoint), bytes.NewBuffer(actJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		var added activities.Activity
		require.NoError(t, json.Unmarshal(respBytes, &added))
		require.True(t, added.ID > 0)
		return added
	}

	now := time.Now()
	run := addActivity("Morning run", []string{"Sport", "Outdoor"}, 45, now.Add(-24*time.Hour))
	addActivity("Full night sleep", []string{"Sleep"}, 480, now.Add(-24*time.Hour))
	addActivity("Evening reading", []string{"Reading"}, 60, now.Add(-48*time.Hour))

	t.Run("get", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/activities/%d", serverEndpoint, run.ID), nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		var gotten activities.Activity
		require.NoError(t, json.Unmarshal(respBytes, &gotten))
		assert.Equal(t, "Morning run", gotten.Title)
		assert.ElementsMatch(t, []string{"Sport", "Outdoor"}, gotten.Tags)
	})

	t.Run("list page", func(t *testing.T) {
		listURL := fmt.Sprintf("%s/activities/list/page/1/size/10?profile_id=%d", serverEndpoint, profileID)
		req, err := http.NewRequestWithContext(ctx, "GET", listURL, nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		var listResp activities.ListResponse
		require.NoError(t, json.Unmarshal(respBytes, &listResp))
		assert.Equal(t, 3, listResp.Total)
		assert.Len(t, listResp.Activities, 3)
	})

	t.Run("list filtered by tag", func(t *testing.T) {
		listURL := fmt.Sprintf("%s/activities/list/page/1/size/10?profile_id=%d&tag=Sleep", serverEndpoint, profileID)
		req, err := http.NewRequestWithContext(ctx, "GET", listURL, nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		var listResp activities.ListResponse
		require.NoError(t, json.Unmarshal(respBytes, &listResp))
		assert.Equal(t, 1, listResp.Total)
		require.Len(t, listResp.Activities, 1)
		assert.Equal(t, "Full night sleep", listResp.Activities[0].Title)
	})

	t.Run("calendar", func(t *testing.T) {
		calendarURL := fmt.Sprintf(
			"%s/activities/calendar/%d/%d?profile_id=%d",
			serverEndpoint, now.Year(), int(now.Month()), profileID,
		)
		req, err := http.NewRequestWithContext(ctx, "GET", calendarURL, nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		var calendarResp activities.CalendarResponse
		require.NoError(t, json.Unmarshal(respBytes, &calendarResp))
		assert.Equal(t, now.Year(), calendarResp.Year)
		assert.Equal(t, int(now.Month()), calendarResp.Month)
		assert.True(t, len(calendarResp.Days) >= 28)

		daysWithActivities := 0
		for _, day := range calendarResp.Days {
			if day.HasActivities {
				daysWithActivities += day.ActivityCount
			}
		}
		assert.True(t, daysWithActivities >= 2)
	})

	t.Run("update", func(t *testing.T) {
		run.Title = "Long morning run"
		run.DurationMinutes = 60
		updateJson, err := json.Marshal(run)
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(ctx, "PUT", fmt.Sprintf("%s/activities", serverEndpoint), bytes.NewBuffer(updateJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		var updateResp activities.UpdateActivityResponse
		require.NoError(t, json.Unmarshal(respBytes, &updateResp))
		assert.Equal(t, run.ID, updateResp.UpdatedID)
	})

	t.Run("delete", func(t *testing.T) {
		extra := addActivity("Throwaway", []string{"Other"}, 5, now)

		req, err := http.NewRequestWithContext(ctx, "DELETE", fmt.Sprintf("%s/activities/%d", serverEndpoint, extra.ID), nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		var deleteResp activities.DeleteActivityResponse
		require.NoError(t, json.Unmarshal(respBytes, &deleteResp))
		assert.Equal(t, extra.ID, deleteResp.DeletedID)
	})

	t.Run("health metrics", func(t *testing.T) {
		var metrics health.Metrics
		s.getHealthReport(ctx, token, profileID, "metrics", &metrics)
		assert.InDelta(t, 8.0/7, metrics.AverageSleepHours, 0.01)
		assert.Equal(t, 60.0, metrics.WeeklyExerciseMinutes)
		assert.Equal(t, 5000, metrics.WeeklySteps)
	})

	t.Run("health distribution", func(t *testing.T) {
		var distribution []health.Distribution
		s.getHealthReport(ctx, token, profileID, "distribution", &distribution)
		require.NotEmpty(t, distribution)

		total := 0.0
		for _, d := range distribution {
			total += d.Percentage
		}
		assert.InDelta(t, 100, total, 0.01)
	})

	t.Run("health score and summary", func(t *testing.T) {
		var score health.Score
		s.getHealthReport(ctx, token, profileID, "score", &score)
		assert.True(t, score.Overall >= 0 && score.Overall <= 100)
		assert.NotEmpty(t, score.Status)

		var summary health.Summary
		s.getHealthReport(ctx, token, profileID, "summary", &summary)
		assert.Equal(t, profileID, summary.ProfileID)
		assert.Equal(t, score.Overall, summary.Score.Overall)
		assert.NotEmpty(t, summary.Recommendations)
	})
}

// Backdated activities must still be picked up by a created_at cursor,
// the backup service relies on this.
func (s *IntegrationTestSuite) TestActivitiesCreatedFromFilter() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t := s.T()
	repo := activities.NewRepo(s.dbPool)
	profileID := s.createProfile(ctx, gofakeit.Name(), gofakeit.Email(), 40)

	now := time.Now()
	cursor := now.Add(-time.Hour)

	// logged well before the cursor
	_, err := repo.Add(ctx, activities.Activity{
		ProfileID:       profileID,
		Title:           "Old walk",
		Tags:            []string{"Walking"},
		DurationMinutes: 30,
		Date:            now.Add(-48 * time.Hour),
		CreatedAt:       now.Add(-2 * time.Hour),
	})
	require.NoError(t, err)

	// logged after the cursor, but dated before it
	backdatedSleep, err := repo.Add(ctx, activities.Activity{
		ProfileID:       profileID,
		Title:           "Last night sleep",
		Tags:            []string{"Sleep"},
		DurationMinutes: 480,
		Date:            now.Add(-26 * time.Hour),
		CreatedAt:       now,
	})
	require.NoError(t, err)

	listed, err := repo.ListAll(ctx, activities.ActivityParams{
		ProfileID:   profileID,
		CreatedFrom: &cursor,
	})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, backdatedSleep.ID, listed[0].ID)
	assert.Equal(t, "Last night sleep", listed[0].Title)

	// a date filter alone would have missed the backdated entry
	listed, err = repo.ListAll(ctx, activities.ActivityParams{
		ProfileID: profileID,
		From:      &cursor,
	})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func (s *IntegrationTestSuite) createProfile(ctx context.Context, name, email string, age int) int {
	t := s.T()
	profileJson, err := json.Marshal(map[string]any{
		"name":  name,
		"email": email,
		"age":   age,
	})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/profiles", serverEndpoint), bytes.NewBuffer(profileJson))
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var created profiles.Profile
	require.NoError(t, json.Unmarshal(respBytes, &created))
	require.True(t, created.ID > 0)
	return created.ID
}

func (s *IntegrationTestSuite) getHealthReport(ctx context.Context, token string, profileID int, report string, target any) {
	t := s.T()
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/health/%d/%s", serverEndpoint, profileID, report), nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	require.NoError(t, json.Unmarshal(respBytes, target))
}
