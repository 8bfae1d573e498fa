package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/apexflow/api/internal/platform/observability"
)

const (
	metricNamespace = "github.com/apexflow/api/internal/platform/secrets"
	defaultCacheTTL = 5 * time.Minute
	defaultVersion  = "latest"
	refScheme       = "secret://"
)

// ErrInvalidReference indicates the secret reference could not be parsed.
var ErrInvalidReference = errors.New("secrets: invalid secret reference")

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references using Google Secret Manager with a
// short-lived in-process cache.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool

	logger         *zap.Logger
	defaultProject string
	cacheTTL       time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry

	latency   metric.Float64Histogram
	cacheHits metric.Int64Counter
}

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

// Option customises Fetcher construction.
type Option func(*Fetcher)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithDefaultProject configures the project used for short references that
// omit the projects/ segment.
func WithDefaultProject(projectID string) Option {
	return func(f *Fetcher) {
		f.defaultProject = strings.TrimSpace(projectID)
	}
}

// WithCacheTTL overrides how long resolved values are reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(f *Fetcher) {
		if ttl > 0 {
			f.cacheTTL = ttl
		}
	}
}

// WithClient injects a preconfigured Secret Manager client, primarily for tests.
func WithClient(client secretManagerClient) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher builds a Fetcher backed by Secret Manager.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	fetcher := &Fetcher{
		logger:   zap.NewNop(),
		cacheTTL: defaultCacheTTL,
		cache:    make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(fetcher)
		}
	}

	if fetcher.client == nil {
		client, err := secretmanager.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("secrets: create client: %w", err)
		}
		fetcher.client = client
		fetcher.ownsClient = true
	}

	meter := otel.GetMeterProvider().Meter(metricNamespace)
	if histogram, err := meter.Float64Histogram("secrets.fetch.duration",
		metric.WithDescription("Latency of Secret Manager fetches in seconds"),
		metric.WithUnit("s"),
	); err == nil {
		fetcher.latency = histogram
	}
	if counter, err := meter.Int64Counter("secrets.cache.hits",
		metric.WithDescription("Number of secret resolutions served from cache"),
	); err == nil {
		fetcher.cacheHits = counter
	}

	return fetcher, nil
}

// ResolveSecret fetches the referenced secret value, satisfying config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	name, err := f.canonicalName(ref)
	if err != nil {
		return "", err
	}

	if value, ok := f.cached(name); ok {
		if f.cacheHits != nil {
			f.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", name)))
		}
		return value, nil
	}

	start := time.Now()
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if f.latency != nil {
		f.latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("secret", name),
			attribute.Bool("error", err != nil),
		))
	}
	if err != nil {
		observability.FromContext(ctx).Warn("secret fetch failed",
			zap.String("secret", name),
			zap.Error(err),
		)
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}
	payload := resp.GetPayload().GetData()
	if len(payload) == 0 {
		return "", fmt.Errorf("secrets: empty payload for %s", name)
	}

	value := string(payload)
	f.mu.Lock()
	f.cache[name] = cacheEntry{value: value, fetchedAt: time.Now()}
	f.mu.Unlock()

	f.logger.Debug("secret resolved", zap.String("secret", name))
	return value, nil
}

// Close releases the Secret Manager client when the Fetcher created it.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil || !f.ownsClient {
		return nil
	}
	return f.client.Close()
}

func (f *Fetcher) cached(name string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[name]
	if !ok || time.Since(entry.fetchedAt) > f.cacheTTL {
		return "", false
	}
	return entry.value, true
}

// canonicalName expands a reference into a fully qualified version resource.
// Accepted forms:
//
//	secret://projects/<project>/secrets/<name>/versions/<version>
//	secret://projects/<project>/secrets/<name>
//	secret://<name>
func (f *Fetcher) canonicalName(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(trimmed, refScheme) {
		return "", fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	body := strings.Trim(strings.TrimPrefix(trimmed, refScheme), "/")
	if body == "" {
		return "", fmt.Errorf("%w: empty reference", ErrInvalidReference)
	}

	if strings.HasPrefix(body, "projects/") {
		parts := strings.Split(body, "/")
		switch {
		case len(parts) == 6 && parts[2] == "secrets" && parts[4] == "versions":
			return body, nil
		case len(parts) == 4 && parts[2] == "secrets":
			return body + "/versions/" + defaultVersion, nil
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidReference, ref)
		}
	}

	if strings.Contains(body, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	if f.defaultProject == "" {
		return "", fmt.Errorf("%w: short reference %q requires a default project", ErrInvalidReference, ref)
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.defaultProject, body, defaultVersion), nil
}
