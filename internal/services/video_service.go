package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"counselmeet/internal/config"
	"counselmeet/internal/utils"
	"counselmeet/pkg/logger"

	"github.com/google/uuid"
)

// Room is a provisioned video room
type Room struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	NotBefore time.Time `json:"not_before"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenRequest describes the participant a join token is minted for
type TokenRequest struct {
	RoomName    string
	UserID      string
	IsClient    bool
	ScheduledAt time.Time
	Duration    time.Duration
}

// VideoProvisioner creates and tears down time-boxed video rooms
type VideoProvisioner interface {
	CreateRoom(ctx context.Context, meetingID string, scheduledAt time.Time, duration time.Duration) (*Room, error)
	CreateToken(ctx context.Context, req TokenRequest) (string, error)
	DeleteRoom(ctx context.Context, roomName string) error
}

// NewVideoProvisioner picks the provider named in cfg
func NewVideoProvisioner(cfg config.VideoConfig, joinLead time.Duration) VideoProvisioner {
	if cfg.Provider == "noop" {
		return &NoopVideo{joinLead: joinLead}
	}
	return NewDailyService(cfg, joinLead, &http.Client{})
}

// DailyService talks to the Daily.co REST API
type DailyService struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	domain       string
	pseudonymKey string
	timeout      time.Duration
	maxRetries   int
	backoff      time.Duration
	joinLead     time.Duration
	expiryPad    time.Duration
}

func NewDailyService(cfg config.VideoConfig, joinLead time.Duration, client *http.Client) *DailyService {
	if client == nil {
		client = &http.Client{}
	}
	return &DailyService{
		client:       client,
		baseURL:      strings.TrimRight(cfg.DailyAPIURL, "/"),
		apiKey:       cfg.DailyAPIKey,
		domain:       cfg.DailyDomain,
		pseudonymKey: cfg.PseudonymKey,
		timeout:      cfg.RequestTimeout,
		maxRetries:   cfg.MaxRetries,
		backoff:      cfg.RetryBackoff,
		joinLead:     joinLead,
		expiryPad:    cfg.RoomExpiryPad,
	}
}

// apiError is a non-2xx answer from the provider
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("daily api returned %d: %s", e.Status, e.Body)
}

func (e *apiError) retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// roomProperties leaves enable_recording unset, which keeps recording off
type roomProperties struct {
	NotBefore       int64 `json:"nbf"`
	Expires         int64 `json:"exp"`
	MaxParticipants int   `json:"max_participants"`
	StartVideoOff   bool  `json:"start_video_off"`
	StartAudioOff   bool  `json:"start_audio_off"`
	EnableChat      bool  `json:"enable_chat"`
	EnableKnocking  bool  `json:"enable_knocking"`
	EjectAtRoomExp  bool  `json:"eject_at_room_exp"`
}

type createRoomRequest struct {
	Name       string         `json:"name"`
	Privacy    string         `json:"privacy"`
	Properties roomProperties `json:"properties"`
}

type roomResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type tokenProperties struct {
	RoomName      string `json:"room_name"`
	IsOwner       bool   `json:"is_owner"`
	UserName      string `json:"user_name"`
	UserID        string `json:"user_id"`
	StartVideoOff bool   `json:"start_video_off"`
	NotBefore     int64  `json:"nbf"`
	Expires       int64  `json:"exp"`
}

type createTokenRequest struct {
	Properties tokenProperties `json:"properties"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// RoomName is deterministic per meeting so a retried create finds the room
// an earlier, timed-out attempt may already have made
func RoomName(meetingID string) string {
	return "counsel-" + meetingID
}

func (s *DailyService) CreateRoom(ctx context.Context, meetingID string, scheduledAt time.Time, duration time.Duration) (*Room, error) {
	nbf := scheduledAt.Add(-s.joinLead)
	exp := scheduledAt.Add(duration).Add(s.expiryPad)
	body := createRoomRequest{
		Name:    RoomName(meetingID),
		Privacy: "private",
		Properties: roomProperties{
			NotBefore:       nbf.Unix(),
			Expires:         exp.Unix(),
			MaxParticipants: 2,
			StartVideoOff:   true,
			StartAudioOff:   false,
			EnableChat:      true,
			EnableKnocking:  true,
			EjectAtRoomExp:  true,
		},
	}

	var resp roomResponse
	err := s.do(ctx, http.MethodPost, "/rooms", body, &resp)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && strings.Contains(apiErr.Body, "already exists") {
		err = s.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(body.Name), nil, &resp)
	}
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	if resp.URL == "" && s.domain != "" {
		resp.URL = fmt.Sprintf("https://%s/%s", s.domain, resp.Name)
	}
	return &Room{Name: resp.Name, URL: resp.URL, NotBefore: nbf, ExpiresAt: exp}, nil
}

func (s *DailyService) CreateToken(ctx context.Context, req TokenRequest) (string, error) {
	userName := "Anonymous Counselor"
	if req.IsClient {
		userName = "Anonymous Client"
	}
	body := createTokenRequest{Properties: tokenProperties{
		RoomName:      req.RoomName,
		IsOwner:       false,
		UserName:      userName,
		UserID:        utils.Pseudonym(s.pseudonymKey, req.UserID),
		StartVideoOff: true,
		NotBefore:     req.ScheduledAt.Add(-s.joinLead).Unix(),
		Expires:       req.ScheduledAt.Add(req.Duration).Unix(),
	}}

	var resp tokenResponse
	if err := s.do(ctx, http.MethodPost, "/meeting-tokens", body, &resp); err != nil {
		return "", fmt.Errorf("create token: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("create token: empty token in response")
	}
	return resp.Token, nil
}

func (s *DailyService) DeleteRoom(ctx context.Context, roomName string) error {
	err := s.do(ctx, http.MethodDelete, "/rooms/"+url.PathEscape(roomName), nil, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

// do runs one API call with a per-attempt timeout, retrying transport
// failures and 5xx/429 answers up to maxRetries times
func (s *DailyService) do(ctx context.Context, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff * time.Duration(attempt)):
			}
		}

		start := time.Now()
		lastErr = s.attempt(ctx, method, path, payload, out)
		logger.LogPerformance("daily "+method+" "+path, time.Since(start), map[string]interface{}{
			"attempt": attempt + 1,
			"failed":  lastErr != nil,
		})
		if lastErr == nil {
			return nil
		}

		var apiErr *apiError
		if errors.As(lastErr, &apiErr) && !apiErr.retryable() {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (s *DailyService) attempt(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// NoopVideo stands in for the provider in local development
type NoopVideo struct {
	joinLead time.Duration
}

func (n *NoopVideo) CreateRoom(ctx context.Context, meetingID string, scheduledAt time.Time, duration time.Duration) (*Room, error) {
	name := RoomName(meetingID)
	return &Room{
		Name:      name,
		URL:       "https://video.invalid/" + name,
		NotBefore: scheduledAt.Add(-n.joinLead),
		ExpiresAt: scheduledAt.Add(duration).Add(24 * time.Hour),
	}, nil
}

func (n *NoopVideo) CreateToken(ctx context.Context, req TokenRequest) (string, error) {
	return "noop-" + uuid.NewString(), nil
}

func (n *NoopVideo) DeleteRoom(ctx context.Context, roomName string) error {
	return nil
}
