package meet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	meet "google.golang.org/api/meet/v2"
	"google.golang.org/api/option"

	"github.com/teemow/meetbot/internal/instrumentation"
	"github.com/teemow/meetbot/internal/logging"
)

// TokenSourceProvider supplies valid Google credentials for each call.
type TokenSourceProvider interface {
	Credentials(ctx context.Context) (oauth2.TokenSource, error)
}

// ClientConfig holds configuration for the Meet client.
type ClientConfig struct {
	// Credentials is asked for a token source on every call (required).
	Credentials TokenSourceProvider

	// RestrictedAccessType is sent for restricted spaces when set. Empty
	// omits the space config so the server default applies.
	RestrictedAccessType string

	// Endpoint overrides the API base URL.
	Endpoint string

	// Metrics is optional.
	Metrics *instrumentation.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client creates Google Meet spaces.
type Client struct {
	credentials          TokenSourceProvider
	restrictedAccessType string
	endpoint             string
	metrics              *instrumentation.Metrics
	logger               *slog.Logger
}

// NewClient creates a Meet client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credentials provider is required")
	}
	switch cfg.RestrictedAccessType {
	case "", AccessTypeTrusted, AccessTypeRestricted:
	default:
		return nil, fmt.Errorf("invalid restricted access type %q", cfg.RestrictedAccessType)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		credentials:          cfg.Credentials,
		restrictedAccessType: cfg.RestrictedAccessType,
		endpoint:             cfg.Endpoint,
		metrics:              cfg.Metrics,
		logger:               cfg.Logger.With(logging.Service(instrumentation.ServiceMeet)),
	}, nil
}

// CreateSpace creates a new space. Credential and API failures are returned
// unwrapped so their text can be shown to the requester as is.
func (c *Client) CreateSpace(ctx context.Context, req SpaceRequest) (*Space, error) {
	ts, err := c.credentials.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceMeet, instrumentation.OperationCreate,
		attribute.Bool("meet.restricted", req.Restricted))
	defer span.End()

	start := time.Now()
	created, err := c.create(ctx, ts, c.buildSpace(req))
	duration := time.Since(start)

	if err != nil {
		c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceMeet, instrumentation.OperationCreate, instrumentation.StatusError, duration)
		instrumentation.SetSpanError(span, err)
		c.logger.Debug("Space creation failed", logging.Restricted(req.Restricted), logging.Err(err))
		return nil, err
	}

	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceMeet, instrumentation.OperationCreate, instrumentation.StatusSuccess, duration)
	instrumentation.SetSpanSuccess(span)
	c.logger.Debug("Space created", "space", created.Name, logging.Restricted(req.Restricted))

	return toSpace(created), nil
}

func (c *Client) create(ctx context.Context, ts oauth2.TokenSource, space *meet.Space) (*meet.Space, error) {
	opts := []option.ClientOption{option.WithTokenSource(ts)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := meet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Meet service: %w", err)
	}
	return svc.Spaces.Create(space).Context(ctx).Do()
}

// buildSpace returns the request body: open spaces set the access type
// explicitly, restricted ones only when an access type is configured.
func (c *Client) buildSpace(req SpaceRequest) *meet.Space {
	space := &meet.Space{}
	switch {
	case !req.Restricted:
		space.Config = &meet.SpaceConfig{AccessType: AccessTypeOpen}
	case c.restrictedAccessType != "":
		space.Config = &meet.SpaceConfig{AccessType: c.restrictedAccessType}
	}
	return space
}

// toSpace converts a Meet API Space to our Space type
func toSpace(s *meet.Space) *Space {
	space := &Space{
		Name:        s.Name,
		MeetingURI:  s.MeetingUri,
		MeetingCode: s.MeetingCode,
	}

	if s.Config != nil {
		space.Config = &SpaceConfig{
			AccessType:       s.Config.AccessType,
			EntryPointAccess: s.Config.EntryPointAccess,
		}
	}

	return space
}
