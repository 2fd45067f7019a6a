package scanner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"guestpass/internal/delivery/http/helpers"
	"guestpass/internal/domain"
)

// ReadLines reads r in a single goroutine and yields its trimmed, non-blank lines, one per
// scan for keyboard-wedge and serial QR readers. The channel is closed at EOF, on a read error
// or when ctx ends. Start it once per device and share the channel through a FeedSource.
func ReadLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// FeedSource is a FrameSource over a long-lived feed of payloads. Open attaches a fresh channel
// and detaches any earlier one; Close detaches. Payloads that arrive while nothing is attached
// are dropped, as a released camera would not see them.
type FeedSource struct {
	mu    sync.Mutex
	cur   *attachment
	ended bool
}

type attachment struct {
	out    chan string
	ctx    context.Context
	cancel context.CancelFunc
}

// NewFeedSource starts consuming feed. When feed closes the attached channel is closed and
// later Opens return closed channels.
func NewFeedSource(feed <-chan string) *FeedSource {
	s := &FeedSource{}
	go s.pump(feed)
	return s
}

func (s *FeedSource) Open(ctx context.Context) (<-chan string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
	out := make(chan string)
	if s.ended {
		close(out)
		return out, nil
	}
	actx, cancel := context.WithCancel(ctx)
	s.cur = &attachment{out: out, ctx: actx, cancel: cancel}
	return out, nil
}

func (s *FeedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
	return nil
}

func (s *FeedSource) detachLocked() {
	if s.cur != nil {
		s.cur.cancel()
		s.cur = nil
	}
}

// pump is the only sender on attachment channels, so it alone closes them.
func (s *FeedSource) pump(feed <-chan string) {
	for line := range feed {
		s.mu.Lock()
		att := s.cur
		s.mu.Unlock()
		if att == nil {
			continue
		}
		select {
		case att.out <- line:
		case <-att.ctx.Done():
		}
	}

	s.mu.Lock()
	s.ended = true
	att := s.cur
	s.cur = nil
	s.mu.Unlock()
	if att != nil {
		att.cancel()
		close(att.out)
	}
}

// HTTPVerifier checks tokens in through the check-in endpoint of one event.
type HTTPVerifier struct {
	client  *http.Client
	baseURL string
	eventID string
	bearer  string
}

func NewHTTPVerifier(client *http.Client, baseURL, eventID, bearer string) *HTTPVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPVerifier{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		eventID: eventID,
		bearer:  bearer,
	}
}

type checkInEnvelope struct {
	Data  *domain.CheckInResult `json:"data"`
	Error *helpers.APIError     `json:"error"`
}

// Verify posts tok and maps error codes back to domain errors.
func (v *HTTPVerifier) Verify(ctx context.Context, tok string) (*domain.CheckInResult, error) {
	body, err := json.Marshal(map[string]string{"token": tok})
	if err != nil {
		return nil, err
	}
	endpoint := v.baseURL + "/events/" + url.PathEscape(v.eventID) + "/checkins"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if v.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+v.bearer)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("check-in request: %w", err)
	}
	defer resp.Body.Close()

	var env checkInEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return nil, fmt.Errorf("check-in response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode == http.StatusOK && env.Data != nil {
		return env.Data, nil
	}
	if env.Error == nil {
		return nil, fmt.Errorf("check-in failed with status %d", resp.StatusCode)
	}

	switch env.Error.Code {
	case helpers.ErrCodeNotYetOpen:
		s, _ := env.Error.Details["starts_at"].(string)
		startsAt, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, errors.Join(errors.New(env.Error.Message), err)
		}
		return nil, &domain.NotYetOpenError{StartsAt: startsAt}
	case helpers.ErrCodeInvalidToken:
		return nil, domain.ErrInvalidToken
	case helpers.ErrCodeNotFound:
		return nil, fmt.Errorf("%s: %w", env.Error.Message, domain.ErrAttendeeNotFound)
	}
	return nil, fmt.Errorf("check-in failed (%d %s): %s", resp.StatusCode, env.Error.Code, env.Error.Message)
}
