package telephony

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

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/utils"
)

const (
	apiURL             = "https://api.twilio.com"
	userAgent          = "spigell/ai-screener"
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
	maxBackoff         = 5 * time.Second
)

// Config holds Twilio account settings.
type Config struct {
	AccountSID string
	AuthToken  string
	From       string
	// APIURL overrides the Twilio API base, used by tests.
	APIURL      string
	MaxAttempts int
	Backoff     time.Duration
}

// CallRequest describes an outbound call.
type CallRequest struct {
	To string
	// PromptURL is fetched by Twilio for the first TwiML document.
	PromptURL string
	// StatusCallbackURL receives call progress events.
	StatusCallbackURL string
}

type Client struct {
	cfg        Config
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
}

// APIError is the error body returned by the Twilio REST API.
type APIError struct {
	Status   int    `mapstructure:"status"`
	Code     int    `mapstructure:"code"`
	Message  string `mapstructure:"message"`
	MoreInfo string `mapstructure:"more_info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio error %d (http %d): %s", e.Code, e.Status, e.Message)
}

type callResource struct {
	SID    string `mapstructure:"sid"`
	Status string `mapstructure:"status"`
	To     string `mapstructure:"to"`
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = apiURL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg:        cfg,
		logger:     logger,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		UserAgent:  userAgent,
	}
}

// PlaceCall asks Twilio to dial req.To and returns the call SID.
// Rejections (4xx) are returned at once wrapped in ErrProviderRejected;
// network failures and 5xx are retried and end in ErrProviderTransient.
func (c *Client) PlaceCall(ctx context.Context, req CallRequest) (string, error) {
	if strings.TrimSpace(req.To) == "" {
		return "", fmt.Errorf("%w: destination is empty", interview.ErrProviderRejected)
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", c.cfg.From)
	form.Set("Url", req.PromptURL)
	form.Set("Method", http.MethodPost)
	if req.StatusCallbackURL != "" {
		form.Set("StatusCallback", req.StatusCallbackURL)
		form.Set("StatusCallbackMethod", http.MethodPost)
		for _, event := range []string{"initiated", "ringing", "answered", "completed"} {
			form.Add("StatusCallbackEvent", event)
		}
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.cfg.APIURL, c.cfg.AccountSID)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := utils.WaitFor(ctx, utils.Backoff(c.cfg.Backoff, maxBackoff, attempt-1)); err != nil {
				return "", fmt.Errorf("%w: %v", interview.ErrProviderTransient, err)
			}
		}

		var call callResource
		err := c.postForm(ctx, endpoint, form, &call)
		if err == nil {
			if call.SID == "" {
				return "", fmt.Errorf("%w: twilio returned empty call sid", interview.ErrProviderTransient)
			}
			c.logger.Info("call placed",
				zap.String("call_sid", call.SID),
				zap.String("status", call.Status),
				zap.Int("attempt", attempt),
			)
			return call.SID, nil
		}

		if errors.Is(err, interview.ErrProviderRejected) || ctx.Err() != nil {
			return "", err
		}

		lastErr = err
		c.logger.Warn("placing call failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
			zap.Error(err),
		)
	}

	return "", lastErr
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", interview.ErrProviderRejected, err)
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.request(req)
	if err != nil {
		return fmt.Errorf("%w: %v", interview.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", interview.ErrProviderTransient, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := decodeAPIError(resp.StatusCode, data)
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", interview.ErrProviderTransient, apiErr)
		}
		return fmt.Errorf("%w: %w", interview.ErrProviderRejected, apiErr)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: decode response: %v", interview.ErrProviderTransient, err)
	}

	return mapstructure.Decode(raw, target)
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err == nil {
		_ = mapstructure.WeakDecode(raw, apiErr)
	}
	if apiErr.Status == 0 {
		apiErr.Status = status
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	return c.HTTPClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	return req
}
