package tauron

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	// containers often ship without zone data
	_ "time/tzdata"

	"github.com/levenlabs/go-lflag"
	"github.com/tauronsensor/tauronsensor/pkg/common"
	"github.com/tauronsensor/tauronsensor/pkg/log"
	"github.com/tauronsensor/tauronsensor/pkg/types"
)

const (
	DefaultBaseURL = "https://elicznik.tauron-dystrybucja.pl"

	loginPath     = "login"
	chartDataPath = "api/chart/data"
	dateLayout    = "2006-01-02"
)

// ErrLoginFailed is returned when the portal rejects the login.
var ErrLoginFailed = errors.New("tauron login failed")

// the portal works in Polish local time
var warsawLocation = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		panic(fmt.Errorf("failed to load warsaw time location: %w", err))
	}
	return loc
}()

// Client is a session against the eLicznik portal. The session cookie is kept
// in the client's cookie jar so a Client must not be shared between accounts
// and is not meant for concurrent fetches.
type Client struct {
	client   *http.Client
	baseURL  string
	username string
	password string
	now      func() time.Time

	mu       sync.Mutex
	loggedIn bool
}

// NewClient returns a Client for the given credentials. A zero timeout means
// one minute.
func NewClient(baseURL, username, password string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Client{
		client:   common.SessionHTTPClient(timeout),
		baseURL:  baseURL,
		username: username,
		password: password,
		now:      time.Now,
	}
}

// Configured sets up flags for the portal client and returns the instance.
// It uses lflag to register command-line flags for configuration.
func Configured() *Client {
	c := &Client{now: time.Now}
	username := lflag.RequiredString("tauron-username", "Username for the Tauron eLicznik portal")
	password := lflag.RequiredString("tauron-password", "Password for the Tauron eLicznik portal")
	baseURL := lflag.String("tauron-base-url", DefaultBaseURL, "Base URL of the Tauron eLicznik portal")
	timeout := lflag.Duration("tauron-timeout", time.Minute, "Timeout for each request to the portal")

	lflag.Do(func() {
		n := NewClient(*baseURL, *username, *password, *timeout)
		c.client = n.client
		c.baseURL = n.baseURL
		c.username = n.username
		c.password = n.password
		if err := c.Validate(); err != nil {
			panic(fmt.Sprintf("tauron client validation failed: %v", err))
		}
	})

	return c
}

// Validate ensures the configuration is valid.
func (c *Client) Validate() error {
	if c.username == "" {
		return errors.New("tauron-username is required")
	}
	if c.password == "" {
		return errors.New("tauron-password is required")
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return fmt.Errorf("failed to parse tauron url (%s): %w", c.baseURL, err)
	}
	return nil
}

// Username returns the account this client logs in as.
func (c *Client) Username() string {
	return c.username
}

// BaseURL returns the portal the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.client.Timeout
}

// LoggedIn returns true once a login succeeded.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

// Login submits the credentials to the portal. It never returns an error;
// every failure is logged and reported as false.
func (c *Client) Login(ctx context.Context) bool {
	if err := c.login(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "tauron login failed", slog.String("username", c.username), slog.Any("error", err))
		return false
	}
	log.Ctx(ctx).InfoContext(ctx, "logged in to tauron", slog.String("username", c.username))
	return true
}

func (c *Client) login(ctx context.Context) error {
	data := url.Values{}
	data.Set("username", c.username)
	data.Set("password", c.password)
	data.Set("service", DefaultBaseURL)

	req, err := c.newPostFormRequest(ctx, loginPath, data)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if !statusOK(resp.StatusCode) {
		return fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}

	c.mu.Lock()
	c.loggedIn = true
	c.mu.Unlock()
	return nil
}

// FetchDailySeries returns the hourly consumption and production series for
// the given window. A zero start defaults to yesterday and a zero end to
// today, both in the portal's local time. If the client isn't logged in yet a
// single login is attempted first. Both series must be fetched successfully
// or an error is returned; a body that isn't a recognizable chart payload is
// not an error and results in a nil series instead, and the session is
// dropped so the next fetch logs in again.
func (c *Client) FetchDailySeries(ctx context.Context, start, end time.Time) (types.RawSeries, error) {
	if !c.LoggedIn() && !c.Login(ctx) {
		return types.RawSeries{}, fmt.Errorf("failed to login: %w", ErrLoginFailed)
	}

	now := c.now().In(warsawLocation)
	if start.IsZero() {
		start = now.AddDate(0, 0, -1)
	}
	if end.IsZero() {
		end = now
	}

	params := url.Values{}
	params.Set("from", start.Format(dateLayout))
	params.Set("to", end.Format(dateLayout))
	params.Set("type", "Day")

	log.Ctx(ctx).DebugContext(
		ctx,
		"fetching tauron chart data",
		slog.String("from", params.Get("from")),
		slog.String("to", params.Get("to")),
	)

	consumption, err := c.getChartData(ctx, params)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to fetch tauron consumption", slog.Any("error", err))
		return types.RawSeries{}, fmt.Errorf("failed to fetch consumption: %w", err)
	}

	params.Set("direction", "production")
	production, err := c.getChartData(ctx, params)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to fetch tauron production", slog.Any("error", err))
		return types.RawSeries{}, fmt.Errorf("failed to fetch production: %w", err)
	}

	return types.RawSeries{
		From:        start,
		To:          end,
		Consumption: consumption,
		Production:  production,
	}, nil
}

func (c *Client) getChartData(ctx context.Context, params url.Values) (*types.ChartData, error) {
	req, err := c.newGetRequest(ctx, chartDataPath, params)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !statusOK(resp.StatusCode) {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var cd types.ChartData
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&cd); err != nil {
		log.Ctx(ctx).WarnContext(
			ctx,
			"failed to decode tauron chart data",
			slog.Any("error", err),
			slog.String("contentType", resp.Header.Get("Content-Type")),
			slog.String("body", truncate(string(body), 256)),
		)
		// an expired session is answered with the login page, log in again
		// on the next fetch
		c.mu.Lock()
		c.loggedIn = false
		c.mu.Unlock()
		return nil, nil
	}
	return &cd, nil
}

func (c *Client) newPostFormRequest(ctx context.Context, endpoint string, data url.Values) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path, err = url.JoinPath(u.Path, endpoint)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func (c *Client) newGetRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path, err = url.JoinPath(u.Path, endpoint)
	if err != nil {
		return nil, err
	}

	u.RawQuery = params.Encode()
	return http.NewRequestWithContext(ctx, "GET", u.String(), nil)
}

// statusOK mirrors what the portal treats as success, anything below 400.
func statusOK(code int) bool {
	return code < http.StatusBadRequest
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
