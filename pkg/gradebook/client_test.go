package gradebook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWriteGradePostsToRoundEndpoint(t *testing.T) {
	var (
		path          string
		authorization string
		payload       map[string]interface{}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		authorization = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, Token: "token"}, zerolog.Nop())
	require.NoError(t, err)

	gradedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, client.WriteGrade(context.Background(), 4, 7, 85, gradedAt))

	require.Equal(t, "/rounds/4/grades", path)
	require.Equal(t, "Bearer token", authorization)
	require.Equal(t, float64(7), payload["user_id"])
	require.Equal(t, float64(85), payload["grade"])
	require.Equal(t, "2026-03-10T12:00:00Z", payload["timestamp"])
}

func TestWriteGradeRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL}, zerolog.Nop())
	require.NoError(t, err)

	err = client.WriteGrade(context.Background(), 4, 7, 85, time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "rejected")
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{}, zerolog.Nop())
	require.Error(t, err)
}
