package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/kograph/api/internal/platform/requestctx"
)

const (
	defaultVersion      = "latest"
	defaultFallbackPath = ".secrets.local"
)

// ErrSecretNotFound is returned when neither Secret Manager nor the local
// fallback file can satisfy a reference.
var ErrSecretNotFound = errors.New("secrets: secret not found")

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references through Google Secret Manager with an
// in-process cache and an optional local fallback file for development.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool

	logger         *zap.Logger
	defaultProject string
	fallbackPath   string

	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]string
}

type fetcherConfig struct {
	logger         *zap.Logger
	defaultProject string
	fallbackPath   string
	client         secretManagerClient
	clientOpts     []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithDefaultProject configures the project used for short secret names.
func WithDefaultProject(projectID string) Option {
	return func(cfg *fetcherConfig) {
		cfg.defaultProject = strings.TrimSpace(projectID)
	}
}

// WithFallbackFile overrides the path to the local fallback secrets file.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) {
		cfg.fallbackPath = strings.TrimSpace(path)
	}
}

// WithSecretManagerClient injects a preconfigured client (primarily for tests).
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) {
		cfg.client = client
	}
}

// WithClientOptions forwards extra options to the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// NewFetcher constructs a Fetcher. When no client is injected, a real Secret
// Manager client is dialled lazily on first use.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		logger:       requestctx.NoopLogger(),
		fallbackPath: defaultFallbackPath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	fetcher := &Fetcher{
		client:         cfg.client,
		logger:         cfg.logger,
		defaultProject: cfg.defaultProject,
		fallbackPath:   cfg.fallbackPath,
		cache:          make(map[string]string),
	}

	if fetcher.client == nil {
		client, err := secretmanager.NewClient(ctx, cfg.clientOpts...)
		if err != nil {
			// Local development without Google credentials still works via
			// the fallback file.
			fetcher.logger.Warn("secrets: secret manager unavailable, using fallback only", zap.Error(err))
		} else {
			fetcher.client = client
			fetcher.ownsClient = true
		}
	}
	return fetcher, nil
}

// Close releases the underlying client when this fetcher owns it.
func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// ResolveSecret implements config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f.Resolve(ctx, ref)
}

// Resolve fetches the value behind a secret:// reference.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	name, version, err := f.resourceName(ref)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	cached, ok := f.cache[name]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if f.client != nil {
		resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
		if err == nil {
			value := strings.TrimSpace(string(resp.GetPayload().GetData()))
			f.mu.Lock()
			f.cache[name] = value
			f.mu.Unlock()
			return value, nil
		}
		f.logger.Warn("secrets: secret manager access failed, trying fallback",
			zap.String("secret", maskReference(ref)), zap.Error(err))
	}

	if value, ok := f.lookupFallback(ref, version); ok {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, maskReference(ref))
}

// Invalidate drops a cached value so the next Resolve refetches it.
func (f *Fetcher) Invalidate(ref string) {
	name, _, err := f.resourceName(ref)
	if err != nil {
		return
	}
	f.mu.Lock()
	delete(f.cache, name)
	f.mu.Unlock()
}

// resourceName turns a secret:// reference into a Secret Manager resource
// name. Supported forms:
//
//	secret://my-secret
//	secret://my-secret#3
//	secret://projects/p/secrets/my-secret/versions/3
func (f *Fetcher) resourceName(ref string) (name, version string, err error) {
	trimmed := strings.TrimSpace(ref)
	trimmed = strings.TrimPrefix(trimmed, "secret://")
	if trimmed == "" {
		return "", "", errors.New("secrets: empty secret reference")
	}

	if strings.HasPrefix(trimmed, "projects/") {
		if !strings.Contains(trimmed, "/versions/") {
			trimmed += "/versions/" + defaultVersion
		}
		parts := strings.Split(trimmed, "/versions/")
		return trimmed, parts[len(parts)-1], nil
	}

	version = defaultVersion
	if i := strings.LastIndexByte(trimmed, '#'); i >= 0 {
		if v := strings.TrimSpace(trimmed[i+1:]); v != "" {
			version = v
		}
		trimmed = trimmed[:i]
	}
	if f.defaultProject == "" {
		return "", "", fmt.Errorf("secrets: no default project for short reference %q", maskReference(ref))
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.defaultProject, trimmed, version), version, nil
}

func (f *Fetcher) lookupFallback(ref, version string) (string, bool) {
	f.fallbackOnce.Do(f.loadFallback)
	if f.fallbackErr != nil || f.fallbackVals == nil {
		return "", false
	}

	short := strings.TrimPrefix(strings.TrimSpace(ref), "secret://")
	if i := strings.LastIndexByte(short, '#'); i >= 0 {
		short = short[:i]
	}
	if strings.HasPrefix(short, "projects/") {
		parts := strings.Split(short, "/")
		for i, part := range parts {
			if part == "secrets" && i+1 < len(parts) {
				short = parts[i+1]
				break
			}
		}
	}

	if value, ok := f.fallbackVals[short+"#"+version]; ok {
		return value, true
	}
	value, ok := f.fallbackVals[short]
	return value, ok
}

func (f *Fetcher) loadFallback() {
	if f.fallbackPath == "" {
		return
	}

	file, err := os.Open(f.fallbackPath)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		f.fallbackErr = err
		f.logger.Warn("secrets: unable to read fallback file", zap.Error(err))
		return
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(parts[1]), "\"'")
	}
	if err := scanner.Err(); err != nil {
		f.fallbackErr = err
		return
	}
	f.fallbackVals = values
}

func maskReference(ref string) string {
	trimmed := strings.TrimSpace(ref)
	if len(trimmed) <= 12 {
		return "secret://***"
	}
	return trimmed[:12] + "***"
}
