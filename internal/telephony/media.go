package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/utils"
)

const mediaExtension = ".mp3"

// MediaURL turns a recording reference from a callback into a downloadable URL.
// Relative URIs are resolved against the API base and a missing extension
// defaults to mp3.
func (c *Client) MediaURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "/") {
		ref = c.cfg.APIURL + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if path.Ext(u.Path) == "" {
		u.Path += mediaExtension
	}
	return u.String()
}

// Fetch downloads recorded audio. Twilio may answer 404 for a short while
// after the recording callback, so 404 is polled for up to MaxAttempts, but
// never past the deadline of ctx. Any other failure is returned at once and
// left to the caller's retry policy. Account credentials are sent only to the
// API host. The caller closes the returned body.
func (c *Client) Fetch(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	mediaURL := c.MediaURL(ref)
	if mediaURL == "" {
		return nil, "", fmt.Errorf("empty audio reference")
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := utils.Backoff(c.cfg.Backoff, maxBackoff, attempt-1)
			if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= wait {
				return nil, "", lastErr
			}
			if err := utils.WaitFor(ctx, wait); err != nil {
				return nil, "", err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
		if err != nil {
			return nil, "", err
		}
		if c.apiHost(req.URL) {
			req = c.setHeaders(req)
		} else {
			req.Header.Set("User-Agent", c.UserAgent)
		}
		req.Header.Set("Accept", "audio/*")

		resp, err := c.request(req)
		if err != nil {
			return nil, "", err
		}

		if resp.StatusCode == http.StatusOK {
			return resp.Body, path.Base(req.URL.Path), nil
		}
		resp.Body.Close()

		lastErr = fmt.Errorf("download recording: bad status: %s", resp.Status)
		if resp.StatusCode != http.StatusNotFound {
			return nil, "", lastErr
		}

		c.logger.Debug("recording not available yet",
			zap.String("url", mediaURL),
			zap.Int("attempt", attempt),
		)
	}

	return nil, "", lastErr
}

func (c *Client) apiHost(u *url.URL) bool {
	api, err := url.Parse(c.cfg.APIURL)
	if err != nil || api.Host == "" {
		return false
	}
	return strings.EqualFold(api.Scheme, u.Scheme) && strings.EqualFold(api.Host, u.Host)
}
