package polarion

import (
	"log/slog"
	"net/http"

	"github.com/almforge/go-polarion/pkg/core"
)

// Services bundles the backend ports a client works through. Injecting
// one replaces the SOAP transport entirely, which is how tests run
// against pkg/adapters/memory.
type Services struct {
	WorkItems core.WorkItemService
	Plans     core.PlanService
	TestRuns  core.TestRunService
	Projects  core.ProjectService
	Users     core.UserService
	Documents core.DocumentService
	Downloads core.Downloader
}

// options holds the internal configuration for the client.
type options struct {
	staticServices bool
	skipVerify     bool
	repoURL        string
	repoUser       string
	repoPassword   string
	services       *Services
	logger         *slog.Logger
	httpClient     *http.Client
}

// Option defines a functional option for configuring the client.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{}
}

// WithStaticServices skips the service catalog discovery request and
// assumes the stock catalog. Use it when the ws/services overview page
// is not reachable.
func WithStaticServices(static bool) Option {
	return func(o *options) {
		o.staticServices = static
	}
}

// WithSkipVerify disables TLS certificate verification.
func WithSkipVerify(skip bool) Option {
	return func(o *options) {
		o.skipVerify = skip
	}
}

// WithRepositoryURL replaces the repository base of attachment download
// URLs, for deployments where the server-reported location is not
// reachable from the client network.
func WithRepositoryURL(url string) Option {
	return func(o *options) {
		o.repoURL = url
	}
}

// WithRepositoryCredentials sets separate credentials for repository
// downloads. They default to the login credentials.
func WithRepositoryCredentials(user, password string) Option {
	return func(o *options) {
		o.repoUser = user
		o.repoPassword = password
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client the SOAP transport uses.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

// WithServices allows injecting backend services directly (e.g. the
// memory adapter). If provided, no SOAP connection is made and the
// connection parameters are ignored.
func WithServices(services Services) Option {
	return func(o *options) {
		o.services = &services
	}
}
