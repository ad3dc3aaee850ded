// Package apiclient is the REST client for the scheduling service. It only
// moves data: validation, conflict pre-checks and error classification live
// in the scheduling package.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lorenzolpandolfo/agenda/internal/availability"
	"github.com/lorenzolpandolfo/agenda/internal/timewindow"
	"github.com/lorenzolpandolfo/agenda/pkg/logging"
)

var apiTracer = otel.Tracer("agenda.internal.apiclient")

const defaultTimeout = 20 * time.Second

// TokenProvider supplies the opaque bearer credential attached to every
// request. The client never inspects or refreshes it.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the scheduling service REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	logger     *logging.Logger
}

// New creates a scheduling service client.
func New(baseURL string, tokens TokenProvider, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("apiclient: base URL is required")
	}
	if tokens == nil {
		return nil, errors.New("apiclient: token provider is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		tokens: tokens,
		logger: logger,
	}, nil
}

// SetHTTPClient overrides the underlying HTTP client. Used by tests and by
// callers that need custom transport settings.
func (c *Client) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		c.httpClient = hc
	}
}

// CreateAvailability publishes a new open slot and returns its id.
func (c *Client) CreateAvailability(ctx context.Context, w timewindow.Window) (uuid.UUID, error) {
	body := CreateAvailabilityRequest{
		StartTime: w.Start.UTC().Format(time.RFC3339),
		EndTime:   w.End.UTC().Format(time.RFC3339),
		Status:    availability.StatusAvailable,
	}
	var out struct {
		AvailabilityID uuid.UUID `json:"availability_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/availabilities", nil, body, &out); err != nil {
		return uuid.Nil, err
	}
	return out.AvailabilityID, nil
}

// ListAvailabilities returns slots matching params. The service answers an
// empty result set with a 400 "No availabilities found."; that is not an
// error for callers, so it maps to an empty slice.
func (c *Client) ListAvailabilities(ctx context.Context, params ListAvailabilitiesParams) ([]availability.Availability, error) {
	q := url.Values{}
	if params.ProfessionalID != uuid.Nil {
		q.Set("professional_id", params.ProfessionalID.String())
	}
	if params.TimeFilter != "" {
		q.Set("time_filter", string(params.TimeFilter))
	}
	if params.Status != "" {
		q.Set("status", string(params.Status))
	}
	if params.Skip > 0 {
		q.Set("skip", strconv.Itoa(params.Skip))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}

	var records []availabilityRecord
	if err := c.do(ctx, http.MethodGet, "/availabilities", q, nil, &records); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest && apiErr.Detail == "No availabilities found." {
			return nil, nil
		}
		return nil, err
	}

	items := make([]availability.Availability, 0, len(records))
	for _, r := range records {
		item, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ChangeAvailabilityStatus asks the service to move a slot to status and
// returns the updated record.
func (c *Client) ChangeAvailabilityStatus(ctx context.Context, id uuid.UUID, status availability.Status) (availability.Availability, error) {
	body := ChangeStatusRequest{AvailabilityID: id, Status: status}
	var record availabilityRecord
	if err := c.do(ctx, http.MethodPost, "/availabilities/change-status", nil, body, &record); err != nil {
		return availability.Availability{}, err
	}
	return record.toDomain()
}

// CreateSchedule reserves an open slot for the authenticated patient and
// returns the new schedule id.
func (c *Client) CreateSchedule(ctx context.Context, availabilityID uuid.UUID) (uuid.UUID, error) {
	body := CreateScheduleRequest{AvailabilityID: availabilityID}
	var out struct {
		ScheduleID uuid.UUID `json:"schedule_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/schedule", nil, body, &out); err != nil {
		return uuid.Nil, err
	}
	return out.ScheduleID, nil
}

// ListSchedules returns the authenticated user's reservations within the
// filter period.
func (c *Client) ListSchedules(ctx context.Context, filter timewindow.TimeFilter) ([]availability.Schedule, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("time_filter", string(filter))
	}
	var records []scheduleRecord
	if err := c.do(ctx, http.MethodGet, "/schedule", q, nil, &records); err != nil {
		return nil, err
	}
	items := make([]availability.Schedule, 0, len(records))
	for _, r := range records {
		items = append(items, r.toDomain())
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	ctx, span := apiTracer.Start(ctx, "apiclient.request")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("apiclient: resolve token: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("apiclient: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apiclient: read response: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: extractDetail(respBody)}
		span.RecordError(apiErr)
		c.logger.Warn("scheduling service rejected request",
			"method", method, "path", path, "status", resp.StatusCode, "detail", apiErr.Detail)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("apiclient: unmarshal response: %w", err)
	}
	return nil
}

// extractDetail pulls the service's {"detail": "..."} reason, falling back to
// the raw body truncated for logs.
func extractDetail(body []byte) string {
	var envelope struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Detail != "" {
		return envelope.Detail
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
