package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gauthierbraillon/storyarchive/pkg/session"
)

const (
	defaultBaseURL = "https://i.instagram.com"
	appID          = "567067343352427"
	userAgent      = "Instagram 269.0.0.18.75 Android (26/8.0.0; 480dpi; 1080x1920; OnePlus; 6T Dev; devitron; qcom; en_US; 314665256)"
)

var (
	ErrBadCredentials = errors.New("Instagram rejected the username or password")
	ErrRateLimited    = errors.New("Instagram rate limit exceeded - please try again later")
	ErrUserNotFound   = errors.New("Instagram user not found")
)

// ChallengeError means Instagram wants the login confirmed in a browser
// before it accepts the device.
type ChallengeError struct {
	URL string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("Instagram requires a security checkpoint: visit %s", e.URL)
}

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithLimiter paces API calls. Media downloads are not paced.
func WithLimiter(limiter *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client talks to the Instagram private API as one emulated device.
type Client struct {
	device     *session.Settings
	baseURL    string
	httpClient HTTPClient
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a client presenting the given device identity.
func NewClient(device *session.Settings, opts ...ClientOption) *Client {
	c := &Client{
		device:     device,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 2),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Session is a logged-in handle. It is only valid for the cycle that
// created it.
type Session struct {
	client        *Client
	authorization string
	User          User
}

// Login authenticates with username and password.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("enc_password", fmt.Sprintf("#PWD_INSTAGRAM:0:%d:%s", time.Now().Unix(), password))
	form.Set("device_id", c.device.DeviceID)
	form.Set("guid", c.device.UUID)
	form.Set("phone_id", c.device.PhoneID)
	form.Set("login_attempt_count", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/accounts/login/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, header, err := c.doAPI(ctx, req)
	if err != nil {
		return nil, err
	}

	var response loginResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse login response: %w", err)
	}

	authorization := header.Get("ig-set-authorization")
	if authorization == "" || strings.HasSuffix(authorization, ":") {
		return nil, fmt.Errorf("login response carried no authorization")
	}

	c.logger.Debug("Logged in", "username", response.LoggedInUser.Username)

	return &Session{
		client:        c,
		authorization: authorization,
		User: User{
			PK:       string(response.LoggedInUser.PK),
			Username: response.LoggedInUser.Username,
		},
	}, nil
}

// UserStories lists the live stories of userID in the order the API returns
// them. A user with no live reel has no stories.
func (s *Session) UserStories(ctx context.Context, userID int64) ([]Story, error) {
	endpoint := fmt.Sprintf("%s/api/v1/feed/user/%d/story/", s.client.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", s.authorization)

	body, _, err := s.client.doAPI(ctx, req)
	if err != nil {
		return nil, err
	}

	var response storyFeedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse story feed response: %w", err)
	}

	if response.Reel == nil {
		return []Story{}, nil
	}

	stories := make([]Story, 0, len(response.Reel.Items))
	for _, item := range response.Reel.Items {
		story := Story{
			PK:        string(item.PK),
			MediaType: item.MediaType,
			TakenAt:   item.TakenAt,
		}
		if len(item.ImageVersions2.Candidates) > 0 {
			story.ThumbnailURL = item.ImageVersions2.Candidates[0].URL
		}
		if len(item.VideoVersions) > 0 {
			story.VideoURL = item.VideoVersions[0].URL
		}
		stories = append(stories, story)
	}

	return stories, nil
}

// DownloadByURL fetches mediaURL into dir as stem plus the extension of the
// URL's last path segment and returns the local path. The file only appears
// under its final name once fully written.
func (s *Session) DownloadByURL(ctx context.Context, mediaURL, stem, dir string) (string, error) {
	if mediaURL == "" {
		return "", fmt.Errorf("no media URL for %s", stem)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", stem, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media download returned HTTP %d for %s", resp.StatusCode, stem)
	}

	ext := extensionFor(mediaURL, resp.Header.Get("Content-Type"))
	if ext == "" {
		return "", fmt.Errorf("cannot determine file extension for %s", stem)
	}

	tmp, err := os.CreateTemp(dir, "."+stem+"-*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write %s: %w", stem, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write %s: %w", stem, err)
	}

	finalPath := filepath.Join(dir, stem+ext)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to store %s: %w", stem, err)
	}

	return finalPath, nil
}

// extensionFor prefers the extension in the URL path and falls back to the
// response content type.
func extensionFor(mediaURL, contentType string) string {
	if u, err := url.Parse(mediaURL); err == nil {
		if ext := path.Ext(path.Base(u.Path)); ext != "" && ext != "." {
			return ext
		}
	}

	switch strings.TrimSpace(strings.Split(contentType, ";")[0]) {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "video/mp4":
		return ".mp4"
	}
	return ""
}

func (c *Client) doAPI(ctx context.Context, req *http.Request) ([]byte, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-IG-App-ID", appID)
	req.Header.Set("X-IG-Device-ID", c.device.UUID)
	req.Header.Set("X-IG-Android-ID", c.device.DeviceID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, c.handleAPIError(resp.StatusCode, body)
	}

	return body, resp.Header, nil
}

// API response types (private - implementation detail)

type loginResponse struct {
	LoggedInUser struct {
		PK       flexibleID `json:"pk"`
		Username string     `json:"username"`
	} `json:"logged_in_user"`
	Status string `json:"status"`
}

type storyFeedResponse struct {
	Reel *struct {
		Items []struct {
			PK             flexibleID `json:"pk"`
			MediaType      int        `json:"media_type"`
			TakenAt        int64      `json:"taken_at"`
			ImageVersions2 struct {
				Candidates []struct {
					URL string `json:"url"`
				} `json:"candidates"`
			} `json:"image_versions2"`
			VideoVersions []struct {
				URL string `json:"url"`
			} `json:"video_versions"`
		} `json:"items"`
	} `json:"reel"`
}

type errorResponse struct {
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
	Challenge *struct {
		URL string `json:"url"`
	} `json:"challenge"`
}

func (c *Client) handleAPIError(statusCode int, body []byte) error {
	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)

	if apiErr.Message == "challenge_required" || apiErr.Challenge != nil {
		challengeURL := ""
		if apiErr.Challenge != nil {
			challengeURL = apiErr.Challenge.URL
		}
		return &ChallengeError{URL: challengeURL}
	}

	switch apiErr.ErrorType {
	case "bad_password", "invalid_user", "invalid_credentials":
		return ErrBadCredentials
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if apiErr.Message == "login_required" {
			return fmt.Errorf("Instagram session expired - log in again")
		}
		return fmt.Errorf("Instagram API access denied: %s", strconv.Quote(apiErr.Message))
	case http.StatusNotFound:
		return ErrUserNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("Instagram API server error (status %d) - please try again later", statusCode)
	default:
		if apiErr.Message != "" {
			return fmt.Errorf("Instagram API error (status %d): %s", statusCode, apiErr.Message)
		}
		return fmt.Errorf("Instagram API error (status %d)", statusCode)
	}
}
