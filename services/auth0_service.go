package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gigconnect/gigconnect-api/config"
	"github.com/sethvargo/go-retry"
)

const (
	userInfoAttempts  = 3
	userInfoRetryBase = 200 * time.Millisecond
	userInfoTimeout   = 10 * time.Second
)

var (
	// ErrUserInfoRejected means Auth0 refused the access token
	ErrUserInfoRejected = errors.New("auth0 rejected the access token")
	// ErrSubjectMismatch means userinfo describes a different user than the token
	ErrSubjectMismatch = errors.New("userinfo subject does not match token subject")
)

// Auth0UserInfo is the profile Auth0's /userinfo endpoint returns for a token
type Auth0UserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Auth0Service reads signup details from the Auth0 tenant
type Auth0Service struct {
	endpoint   string
	httpClient *http.Client
	retryBase  time.Duration
}

// NewAuth0Service builds a client for cfg's tenant. A domain with a scheme
// is used as the base URL as-is.
func NewAuth0Service(cfg *config.Config) *Auth0Service {
	return &Auth0Service{
		endpoint:   userInfoURL(cfg.Auth0Domain),
		httpClient: &http.Client{Timeout: userInfoTimeout},
		retryBase:  userInfoRetryBase,
	}
}

func userInfoURL(domain string) string {
	base := &url.URL{Scheme: "https", Host: domain}
	if u, err := url.Parse(domain); err == nil && u.Scheme != "" && u.Host != "" {
		base = u
	}
	return base.JoinPath("userinfo").String()
}

// GetUserInfo fetches the profile for accessToken and checks it belongs to
// subject. Server errors and rate limits are retried; a refused token is not.
func (s *Auth0Service) GetUserInfo(ctx context.Context, accessToken, subject string) (*Auth0UserInfo, error) {
	var info *Auth0UserInfo
	backoff := retry.WithMaxRetries(userInfoAttempts-1, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		info, err = s.fetchUserInfo(ctx, accessToken)
		return err
	})
	if err != nil {
		return nil, err
	}

	if subject != "" && info.Sub != subject {
		return nil, fmt.Errorf("%w: got %q", ErrSubjectMismatch, info.Sub)
	}
	return info, nil
}

func (s *Auth0Service) fetchUserInfo(ctx context.Context, accessToken string) (*Auth0UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("failed to call userinfo endpoint: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrUserInfoRejected, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("userinfo endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, retry.RetryableError(err)
		}
		return nil, err
	}

	var info Auth0UserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	return &info, nil
}
