package embed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	relayerrors "github.com/byteness/embedrelay/errors"
	"github.com/byteness/embedrelay/identity"
	"github.com/byteness/embedrelay/logging"
	"github.com/byteness/embedrelay/metrics"
	"github.com/byteness/embedrelay/notification"
)

// Configuration errors returned by NewResolver.
var (
	ErrMissingAccountID  = errors.New("account ID is required")
	ErrMissingRoleARN    = errors.New("role ARN is required")
	ErrMissingSTSClient  = errors.New("STS client is required")
	ErrMissingQuickSight = errors.New("QuickSight client factory is required")
)

// Resolver turns an ID token and a dashboard name into an embed URL.
// It is safe for concurrent use; every call works on its own
// RequestContext.
type Resolver struct {
	config     Config
	partition  string
	roleName   string
	sts        STSClient
	quicksight QuickSightFactory
	logger     logging.Logger
	notifier   notification.Notifier
	metrics    metrics.Publisher
	now        func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSTSClient sets the STS client used for the credential exchange.
func WithSTSClient(c STSClient) Option {
	return func(r *Resolver) { r.sts = c }
}

// WithQuickSightFactory sets the factory for per-request QuickSight clients.
func WithQuickSightFactory(f QuickSightFactory) Option {
	return func(r *Resolver) { r.quicksight = f }
}

// WithLogger sets the audit logger. Defaults to logging.NopLogger.
func WithLogger(l logging.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithNotifier sets the provisioning event notifier. Defaults to a no-op.
func WithNotifier(n notification.Notifier) Option {
	return func(r *Resolver) { r.notifier = n }
}

// WithMetrics sets the metrics publisher. Defaults to a no-op.
func WithMetrics(p metrics.Publisher) Option {
	return func(r *Resolver) { r.metrics = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver validates cfg, applies defaults and returns a Resolver.
func NewResolver(cfg Config, opts ...Option) (*Resolver, error) {
	if cfg.AccountID == "" {
		return nil, ErrMissingAccountID
	}
	if cfg.RoleARN == "" {
		return nil, ErrMissingRoleARN
	}
	partition, roleName, err := ParseRoleARN(cfg.RoleARN)
	if err != nil {
		return nil, err
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.UserRole == "" {
		cfg.UserRole = DefaultUserRole
	}
	cfg.UserRole = strings.ToUpper(cfg.UserRole)
	if !validUserRole(cfg.UserRole) {
		return nil, invalidUserRole(cfg.UserRole)
	}
	if cfg.Login.Region == "" {
		cfg.Login.Region = cfg.Region
	}

	r := &Resolver{
		config:    cfg,
		partition: partition,
		roleName:  roleName,
		logger:    logging.NewNopLogger(),
		notifier:  &notification.NoopNotifier{},
		metrics:   metrics.NopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.sts == nil {
		return nil, ErrMissingSTSClient
	}
	if r.quicksight == nil {
		return nil, ErrMissingQuickSight
	}
	return r, nil
}

// Config returns the effective configuration after defaults.
func (r *Resolver) Config() Config {
	return r.config
}

// LoginURL returns the Cognito hosted UI URL users are redirected to.
// It depends only on configuration.
func (r *Resolver) LoginURL() string {
	return r.config.Login.URL()
}

// ResolveEmbedURL runs the full workflow for one request. Token and
// dashboard name are validated before any network call. The returned error
// is always a relayerrors.RelayError.
func (r *Resolver) ResolveEmbedURL(ctx context.Context, idToken, dashboardName string) (*Result, error) {
	start := r.now()
	rc := &RequestContext{
		RequestID:     identity.NewRequestID(),
		AccountID:     r.config.AccountID,
		RoleARN:       r.config.RoleARN,
		Partition:     r.partition,
		RoleName:      r.roleName,
		Namespace:     r.config.Namespace,
		Region:        r.config.Region,
		DashboardName: dashboardName,
	}

	result, err := r.resolve(ctx, rc, idToken)
	r.record(ctx, rc, result, err, r.now().Sub(start))
	return result, err
}

func (r *Resolver) resolve(ctx context.Context, rc *RequestContext, idToken string) (*Result, error) {
	claims, err := identity.DecodeClaims(idToken)
	if err != nil {
		return nil, relayerrors.New(relayerrors.KindInvalidToken, fmt.Sprintf("invalid identity token: %v", err), err)
	}
	if strings.TrimSpace(rc.DashboardName) == "" {
		return nil, relayerrors.New(relayerrors.KindInvalidRequest, "dashboardName is required", nil)
	}
	sessionName, err := identity.SessionName(claims.Username)
	if err != nil {
		return nil, relayerrors.New(relayerrors.KindInvalidToken, fmt.Sprintf("invalid username claim: %v", err), err)
	}
	rc.WithIdentity(sessionName, claims.Email)

	creds, err := r.exchangeCredentials(ctx, idToken, rc)
	if err != nil {
		return nil, err
	}
	rc.WithCredentials(creds)

	region, err := r.resolveIdentityRegion(ctx, rc)
	if err != nil {
		return nil, err
	}
	rc.WithIdentityRegion(region)

	return r.run(ctx, rc)
}

// run drives the search-and-embed state machine.
func (r *Resolver) run(ctx context.Context, rc *RequestContext) (*Result, error) {
	var (
		state      = StateAttempting
		url        string
		registered bool
		err        error
	)

	for !state.Terminal() {
		switch state {
		case StateAttempting, StateRetrying:
			url, err = r.searchAndEmbed(ctx, rc)
		case StateRegistering:
			log.Printf("INFO: QuickSight user %s not registered, registering request=%s",
				rc.QuickSightUserName(), rc.RequestID)
			if err = r.registerUser(ctx, rc); err == nil {
				registered = true
			}
		}
		state = nextState(state, err)
	}

	if state == StateFailed {
		return nil, err
	}
	return &Result{
		URL:            url,
		DashboardID:    rc.DashboardID,
		DashboardName:  rc.DashboardName,
		IdentityRegion: rc.IdentityRegion,
		Registered:     registered,
		RequestID:      rc.RequestID,
	}, nil
}

func (r *Resolver) searchAndEmbed(ctx context.Context, rc *RequestContext) (string, error) {
	dashboard, err := r.findDashboard(ctx, rc)
	if err != nil {
		return "", err
	}
	rc.WithDashboard(dashboard.ID)
	return r.embedURL(ctx, rc, dashboard.ID)
}

// record emits the audit entry, metrics and operational log line for one
// resolution.
func (r *Resolver) record(ctx context.Context, rc *RequestContext, result *Result, err error, elapsed time.Duration) {
	entry := logging.EmbedLogEntry{
		Timestamp:      logging.FormatTimestamp(r.now()),
		RequestID:      rc.RequestID,
		User:           rc.Username,
		AccountID:      rc.AccountID,
		Dashboard:      rc.DashboardName,
		DashboardID:    rc.DashboardID,
		Region:         rc.Region,
		IdentityRegion: rc.IdentityRegion,
		Outcome:        logging.OutcomeIssued,
		DurationMS:     elapsed.Milliseconds(),
	}
	if result != nil {
		entry.Registered = result.Registered
	}
	if err != nil {
		entry.Outcome = logging.OutcomeFailed
		entry.ErrorCode = relayerrors.GetCode(err)
		entry.ErrorMessage = err.Error()
		log.Printf("ERROR: embed resolution failed request=%s user=%s dashboard=%q code=%s: %v",
			rc.RequestID, rc.Username, rc.DashboardName, entry.ErrorCode, err)
	} else {
		log.Printf("INFO: embed URL issued request=%s user=%s dashboard=%s identity_region=%s",
			rc.RequestID, rc.Username, rc.DashboardID, rc.IdentityRegion)
	}
	r.logger.LogEmbed(entry)

	if perr := r.metrics.Publish(ctx, metrics.Resolution{
		Outcome:    entry.Outcome,
		ErrorCode:  entry.ErrorCode,
		Registered: entry.Registered,
		Duration:   elapsed,
		Timestamp:  r.now(),
	}); perr != nil {
		log.Printf("WARNING: metrics publish failed: %v", perr)
	}
}
