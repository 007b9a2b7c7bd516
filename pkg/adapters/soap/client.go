package soap

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/almforge/go-polarion/internal/soapenv"
)

const servicePath = "ws/services"

// defaultServices is the catalog assumed when discovery is skipped or
// the overview page is unreachable.
var defaultServices = []string{
	"Session", "Project", "Tracker", "Builder", "Planning", "TestManagement", "Security",
}

var servicePattern = regexp.MustCompile(`(\w+)WebService`)

// Config holds the configuration for a server connection.
type Config struct {
	// BaseURL is the deployment root, e.g. https://alm.example.com/polarion.
	BaseURL  string
	User     string
	Password string

	// StaticServices skips the ws/services discovery request and
	// assumes the stock service catalog.
	StaticServices bool

	// SkipVerify disables TLS certificate verification.
	SkipVerify bool

	// RepoURL replaces the repository base of attachment download URLs
	// when the server-reported location is not reachable from the
	// client network. Leave empty to download from the reported URL.
	RepoURL string

	// RepoUser and RepoPassword authenticate repository downloads.
	// They default to User and Password.
	RepoUser     string
	RepoPassword string

	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Client talks to the web services of one server. It is safe for
// concurrent use; the login session is shared across all accessors
// borrowed from it.
type Client struct {
	config   Config
	base     string // normalized <BaseURL>/ws/services
	http     *http.Client
	services map[string]string // service name -> endpoint URL

	mu        sync.Mutex
	sessionID string

	calls   atomic.Int64
	replays atomic.Int64
}

// NewClient creates a client for the given server. No network traffic
// happens until Connect.
func NewClient(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
		if config.SkipVerify {
			httpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}
	}
	base := strings.TrimRight(config.BaseURL, "/") + "/" + servicePath
	return &Client{
		config:   config,
		base:     base,
		http:     httpClient,
		services: make(map[string]string),
	}
}

// Connect resolves the service catalog and starts a login session.
//
// 1. Resolve the catalog, either from the ws/services overview page or
//    from the static list.
// 2. Log in and capture the session token from the response header.
func (c *Client) Connect(ctx context.Context) error {
	if c.config.StaticServices {
		c.staticCatalog()
	} else if err := c.discoverCatalog(ctx); err != nil {
		if c.config.Logger != nil {
			c.config.Logger.Warn("service discovery failed, assuming stock catalog", "error", err)
		}
		c.staticCatalog()
	}
	if _, ok := c.services["Session"]; !ok {
		return fmt.Errorf("server at %s exposes no Session service", c.base)
	}
	return c.logIn(ctx)
}

// Close ends the login session. The client is unusable afterwards.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	loggedIn := c.sessionID != ""
	c.mu.Unlock()
	if !loggedIn {
		return nil
	}
	err := c.endSession(ctx)
	c.setSession("")
	return err
}

// HasService reports whether the catalog carries the named service.
func (c *Client) HasService(name string) bool {
	_, ok := c.services[name]
	return ok
}

func (c *Client) staticCatalog() {
	for _, name := range defaultServices {
		c.services[name] = c.base + "/" + name + "WebService"
	}
}

func (c *Client) discoverCatalog(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base, nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("service overview returned %s", res.Status)
	}
	page, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	for _, m := range servicePattern.FindAllStringSubmatch(string(page), -1) {
		name := m[1]
		if _, ok := c.services[name]; !ok {
			c.services[name] = c.base + "/" + name + "WebService"
		}
	}
	if len(c.services) == 0 {
		return fmt.Errorf("no services listed at %s", c.base)
	}
	if c.config.Logger != nil {
		c.config.Logger.Debug("service catalog discovered", "services", len(c.services))
	}
	return nil
}

// call sends one operation and parses the response. When the server
// faults because the session expired, it logs in again and replays the
// operation once.
func (c *Client) call(ctx context.Context, op operation) (*soapenv.Response, error) {
	resp, err := c.send(ctx, op)
	var fault *soapenv.Fault
	if errors.As(err, &fault) && fault.SessionExpired() {
		if c.config.Logger != nil {
			c.config.Logger.Debug("session expired, logging in again", "op", op.Name)
		}
		if err := c.logIn(ctx); err != nil {
			return nil, err
		}
		c.replays.Add(1)
		return c.send(ctx, op)
	}
	return resp, err
}

func (c *Client) send(ctx context.Context, op operation) (*soapenv.Response, error) {
	endpoint, ok := c.services[op.Service]
	if !ok {
		return nil, fmt.Errorf("no %s service at %s", op.Service, c.base)
	}
	body, err := soapenv.Marshal(c.session(), op)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op.Name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `""`)

	c.calls.Add(1)
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	// Faults arrive with a 500 status but still carry an envelope, so
	// parse before looking at the status code.
	parsed, err := soapenv.Parse(data)
	if err != nil {
		var fault *soapenv.Fault
		if errors.As(err, &fault) {
			return nil, fault
		}
		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s %s: server returned %s", op.Service, op.Name, res.Status)
		}
		return nil, fmt.Errorf("%s %s: %w", op.Service, op.Name, err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: server returned %s", op.Service, op.Name, res.Status)
	}
	return parsed, nil
}

func (c *Client) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) setSession(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}
