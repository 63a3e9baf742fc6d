package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tutor-booking/pkg/utils"
)

// Meeting is a created video-meeting room.
type Meeting struct {
	ID      string `json:"meeting_id"`
	JoinURL string `json:"join_url"`
}

// MeetingProvider creates and deletes video-meeting rooms. All calls are
// best-effort from the engine's point of view: a failure must never block a
// payment or a cancellation.
type MeetingProvider interface {
	CreateMeeting(ctx context.Context, subject string, start, end time.Time, attendees []string) (*Meeting, error)
	DeleteMeeting(ctx context.Context, meetingID string) error
}

type meetingClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewMeetingProvider(config utils.MeetingConfig) MeetingProvider {
	return &meetingClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		client: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}
}

type createMeetingRequest struct {
	Subject   string    `json:"subject"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Attendees []string  `json:"attendees"`
}

func (c *meetingClient) CreateMeeting(ctx context.Context, subject string, start, end time.Time, attendees []string) (*Meeting, error) {
	body := createMeetingRequest{
		Subject:   subject,
		StartTime: start,
		EndTime:   end,
		Attendees: attendees,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal meeting request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/meetings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("create meeting: status %d: %s", resp.StatusCode, string(data))
	}

	var meeting Meeting
	if err := json.NewDecoder(resp.Body).Decode(&meeting); err != nil {
		return nil, fmt.Errorf("decode meeting response: %w", err)
	}

	return &meeting, nil
}

func (c *meetingClient) DeleteMeeting(ctx context.Context, meetingID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/meetings/"+meetingID, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delete meeting %s: status %d", meetingID, resp.StatusCode)
	}

	return nil
}
