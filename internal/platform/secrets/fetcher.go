package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const defaultFallbackPath = ".secrets.local"

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references against Google Secret Manager, with a
// local file fallback for offline development and an in-memory cache.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger
	projectID  string

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]string
}

type fetcherConfig struct {
	logger       *zap.Logger
	projectID    string
	fallbackPath string
	client       secretManagerClient
	clientOpts   []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithProject configures the project ID used for bare secret names.
func WithProject(projectID string) Option {
	return func(cfg *fetcherConfig) {
		cfg.projectID = strings.TrimSpace(projectID)
	}
}

// WithFallbackFile overrides the path to the local fallback secrets file.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) {
		cfg.fallbackPath = strings.TrimSpace(path)
	}
}

// WithSecretManagerClient injects a preconfigured Secret Manager client (primarily for tests).
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) {
		cfg.client = client
	}
}

// WithClientOptions forwards Cloud client options when constructing the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// NewFetcher constructs a Fetcher. When no client is injected, a real Secret
// Manager client is dialed lazily on first use.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		logger:       zap.NewNop(),
		fallbackPath: defaultFallbackPath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	fetcher := &Fetcher{
		client:       cfg.client,
		logger:       cfg.logger,
		projectID:    cfg.projectID,
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]string),
	}

	if fetcher.client == nil {
		client, err := secretManagerClientFactory(ctx, cfg.clientOpts...)
		if err != nil {
			// Without a remote client the fetcher can still serve local fallbacks.
			fetcher.logger.Warn("secret manager client unavailable, using fallback only", zap.Error(err))
		} else {
			fetcher.client = client
			fetcher.ownsClient = true
		}
	}

	return fetcher, nil
}

// Resolve returns the secret value for a secret:// reference.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	canonical, resource, err := f.canonicalise(ref)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	if value, ok := f.cache[canonical]; ok {
		f.mu.RUnlock()
		return value, nil
	}
	f.mu.RUnlock()

	if f.client != nil {
		resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
		if err == nil {
			value := string(resp.GetPayload().GetData())
			f.mu.Lock()
			f.cache[canonical] = value
			f.mu.Unlock()
			return value, nil
		}
		f.logger.Warn("secret manager access failed, trying fallback",
			zap.String("resource", resource),
			zap.Error(err),
		)
	}

	if value, ok := f.fallbackValue(canonical); ok {
		f.mu.Lock()
		f.cache[canonical] = value
		f.mu.Unlock()
		return value, nil
	}

	return "", fmt.Errorf("secrets: unable to resolve %s", canonical)
}

// ResolveSecret satisfies the config.SecretResolver interface.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f.Resolve(ctx, ref)
}

// Close releases the Secret Manager client when owned by this Fetcher.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil || !f.ownsClient {
		return nil
	}
	return f.client.Close()
}

// canonicalise normalises a reference and expands it to a full Secret Manager
// resource name. Bare names resolve against the configured project at the
// latest version.
func (f *Fetcher) canonicalise(ref string) (canonical, resource string, err error) {
	trimmed := strings.TrimSpace(ref)
	if strings.HasPrefix(trimmed, "sm://") {
		trimmed = "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	name := strings.TrimPrefix(trimmed, "secret://")
	if name == "" || name == trimmed {
		return "", "", fmt.Errorf("secrets: invalid reference %q", ref)
	}

	if strings.HasPrefix(name, "projects/") {
		return "secret://" + name, name, nil
	}

	if f.projectID == "" {
		return "", "", errors.New("secrets: project id required for bare secret names")
	}
	resource = fmt.Sprintf("projects/%s/secrets/%s/versions/latest", f.projectID, name)
	return "secret://" + name, resource, nil
}

func (f *Fetcher) fallbackValue(canonical string) (string, bool) {
	f.fallbackOnce.Do(func() {
		f.fallbackVals, f.fallbackErr = loadFallbackFile(f.fallbackPath)
		if f.fallbackErr != nil {
			f.logger.Warn("failed loading fallback secrets", zap.Error(f.fallbackErr))
		}
	})
	if f.fallbackVals == nil {
		return "", false
	}
	value, ok := f.fallbackVals[canonical]
	return value, ok
}

func loadFallbackFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("secrets: unable to read %s: %w", absPath, err)
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
		values[key] = strings.TrimSpace(parts[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("secrets: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}
