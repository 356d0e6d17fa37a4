package gradebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Config contains the settings for the gradebook endpoint.
type Config struct {
	// BaseURL is the gradebook service origin, e.g. "https://lms.example/grades".
	BaseURL string
	// Token is sent as a bearer credential on every write.
	Token   string
	Timeout time.Duration
}

// Client pushes aggregate round grades to an external gradebook over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	logger  zerolog.Logger
}

// New constructs a gradebook client instance.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gradebook base url must be provided")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		logger:  logger.With().Str("component", "gradebook").Logger(),
	}, nil
}

// WriteGrade records the student's aggregate grade for the round.
func (c *Client) WriteGrade(ctx context.Context, roundID, studentID uint, grade int, gradedAt time.Time) error {
	payload, err := json.Marshal(map[string]any{
		"user_id":   studentID,
		"grade":     grade,
		"timestamp": gradedAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	target := fmt.Sprintf("%s/rounds/%d/grades", c.baseURL, roundID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gradebook write failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("gradebook write rejected: %s", res.Status)
	}

	c.logger.Debug().
		Uint("round_id", roundID).
		Uint("student_id", studentID).
		Int("grade", grade).
		Msg("aggregate grade recorded")

	return nil
}
