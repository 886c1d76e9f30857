package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/mvasic/vitalog/internal/profiles"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestProfiles() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t := s.T()
	token := s.doLogin(ctx)

	newProfileReq := map[string]any{
		"name":          "Mila",
		"email":         "mila@vitalog.app",
		"age":           28,
		"weightKg":      58.5,
		"heightCm":      168,
		"healthGoal":    "endurance",
		"activityLevel": "very_active",
	}
	newProfileJson, err := json.Marshal(newProfileReq)
	require.NoError(t, err)

	// onboarding endpoint is public, no token needed
	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/profiles", serverEndpoint), bytes.NewBuffer(newProfileJson))
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var createdProfile profiles.Profile
	require.NoError(t, json.Unmarshal(respBytes, &createdProfile))
	require.True(t, createdProfile.ID > 0)
	assert.Equal(t, "Mila", createdProfile.Name)
	assert.Equal(t, profiles.GoalEndurance, createdProfile.HealthGoal)

	t.Run("duplicate email rejected", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/profiles", serverEndpoint), bytes.NewBuffer(newProfileJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	})

	t.Run("get requires session", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/profiles/%d", serverEndpoint, createdProfile.ID), nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	})

	t.Run("get with session", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/profiles/%d", serverEndpoint, createdProfile.ID), nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		var gotten profiles.Profile
		require.NoError(t, json.Unmarshal(respBytes, &gotten))
		assert.Equal(t, createdProfile.ID, gotten.ID)
		assert.Equal(t, "mila@vitalog.app", gotten.Email)
	})

	t.Run("update weight", func(t *testing.T) {
		updateJson := []byte(`{"weightKg": 59.2}`)
		req, err := http.NewRequestWithContext(ctx, "PUT", fmt.Sprintf("%s/profiles/%d", serverEndpoint, createdProfile.ID), bytes.NewBuffer(updateJson))
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

		var updateResp profiles.UpdateProfileResponse
		require.NoError(t, json.Unmarshal(respBytes, &updateResp))
		assert.Equal(t, createdProfile.ID, updateResp.UpdatedID)
	})

	t.Run("register and login", func(t *testing.T) {
		registerJson := []byte(`{
			"name": "Petar",
			"email": "petar@vitalog.app",
			"password": "s3cret-pass",
			"age": 41,
			"weightKg": 88,
			"heightCm": 185,
			"healthGoal": "weight_loss",
			"activityLevel": "lightly_active"
		}`)
		req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/profiles/register", serverEndpoint), bytes.NewBuffer(registerJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.NoError(t, resp.Body.Close())

		loginJson, err := json.Marshal(loginRequest{
			Email:    "petar@vitalog.app",
			Password: "s3cret-pass",
		})
		require.NoError(t, err)

		loginReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/a/login", serverEndpoint), bytes.NewBuffer(loginJson))
		require.NoError(t, err)
		loginReq.Header.Set("User-Agent", "test-agent")
		loginReq.Header.Set("Content-Type", "application/json")

		loginResp, err := s.httpClient.Do(loginReq)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, loginResp.StatusCode)

		loginRespBytes, err := io.ReadAll(loginResp.Body)
		require.NoError(t, err)
		require.NoError(t, loginResp.Body.Close())

		var parsedLogin loginResponse
		require.NoError(t, json.Unmarshal(loginRespBytes, &parsedLogin))
		assert.NotEmpty(t, parsedLogin.Token)
	})

	t.Run("register with short password", func(t *testing.T) {
		registerJson := []byte(`{
			"name": "Jova",
			"email": "jova@vitalog.app",
			"password": "short",
			"age": 25
		}`)
		req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/profiles/register", serverEndpoint), bytes.NewBuffer(registerJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	})

	t.Run("delete", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, "DELETE", fmt.Sprintf("%s/profiles/%d", serverEndpoint, createdProfile.ID), nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		var deleteResp profiles.DeleteProfileResponse
		require.NoError(t, json.Unmarshal(respBytes, &deleteResp))
		assert.Equal(t, createdProfile.ID, deleteResp.DeletedID)
	})
}
