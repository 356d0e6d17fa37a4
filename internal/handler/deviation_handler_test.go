package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/astra-go-api/internal/dto"
	"github.com/noah-isme/astra-go-api/internal/handler"
	"github.com/noah-isme/astra-go-api/internal/models"
	"github.com/noah-isme/astra-go-api/internal/service"
)

type mockDeviationService struct {
	service.DeviationService

	created   *models.DeadlineDeviation
	deadlines []models.DeadlineDeviation
	err       error
}

func (m *mockDeviationService) CreateDeadlineDeviation(_ context.Context, deviation models.DeadlineDeviation) (models.DeadlineDeviation, error) {
	if m.err != nil {
		return models.DeadlineDeviation{}, m.err
	}
	deviation.ID = 1
	deviation.CreatedAt = time.Now()
	m.created = &deviation
	return deviation, nil
}

func (m *mockDeviationService) ListDeadlineDeviations(_ context.Context, exerciseID uint) ([]models.DeadlineDeviation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.deadlines, nil
}

func decodeResponse(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.NoError(t, json.Unmarshal(body, out))
}

func newDeviationApp(svc service.DeviationService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/deviations", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(1))
		c.Locals("user_role", "teacher")
		return c.Next()
	})
	handler.NewDeviationHandler(svc, validator.New(), zerolog.New(io.Discard)).Register(group)
	return app
}

func TestDeviationHandler_CreateDeadline(t *testing.T) {
	svc := &mockDeviationService{}
	app := newDeviationApp(svc)

	payload := dto.DeadlineDeviationCreateRequest{ExerciseID: 10, Submitter: 7, ExtraMinutes: 120, WithoutLatePenalty: true}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deviations/deadlines", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var response struct {
		Success bool                          `json:"success"`
		Data    dto.DeadlineDeviationResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, uint(7), response.Data.Submitter)
	require.True(t, response.Data.WithoutLatePenalty)
	require.NotNil(t, svc.created)
	require.Equal(t, 120, svc.created.ExtraMinutes)
}

func TestDeviationHandler_CreateDeadlineValidation(t *testing.T) {
	svc := &mockDeviationService{}
	app := newDeviationApp(svc)

	payload := map[string]interface{}{"exercise_id": 10, "submitter": 7, "extra_minutes": 0}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deviations/deadlines", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Nil(t, svc.created)
}

func TestDeviationHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "missing exercise", err: service.ErrExerciseNotFound, statusCode: fiber.StatusNotFound},
		{name: "duplicate", err: service.ErrDeviationExists, statusCode: fiber.StatusConflict},
		{name: "generic", err: errors.New("boom"), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newDeviationApp(&mockDeviationService{err: tc.err})

			payload := dto.DeadlineDeviationCreateRequest{ExerciseID: 10, Submitter: 7, ExtraMinutes: 60}
			body, err := json.Marshal(payload)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/deviations/deadlines", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)
		})
	}
}

func TestDeviationHandler_ListDeadlines(t *testing.T) {
	svc := &mockDeviationService{deadlines: []models.DeadlineDeviation{
		{ID: 1, ExerciseID: 10, Submitter: 3, ExtraMinutes: 30},
		{ID: 2, ExerciseID: 10, Submitter: 9, ExtraMinutes: 60},
	}}
	app := newDeviationApp(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deviations/deadlines/10", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool                            `json:"success"`
		Data    []dto.DeadlineDeviationResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Len(t, response.Data, 2)
	require.Equal(t, uint(3), response.Data[0].Submitter)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/deviations/deadlines/nonsense", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
