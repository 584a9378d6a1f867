package smartsense

import (
	"context"
	"io"
	"log/slog"

	"github.com/smartsense/smartsense/domain/document"
	"github.com/smartsense/smartsense/domain/floorplan"
	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/domain/search"
	"github.com/smartsense/smartsense/domain/task"
	"github.com/smartsense/smartsense/internal/config"
)

// VectorStore is the vector collection the client writes and searches.
type VectorStore interface {
	property.VectorIndex
	search.Searcher
	Ping(ctx context.Context) error
	Close() error
}

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	app         config.AppConfig
	logger      *slog.Logger
	embedder    search.Embedder
	detector    floorplan.Detector
	vectorStore VectorStore
	extractor   document.Extractor
	loader      property.RowLoader
	reporters   []task.Reporter
	closers     []io.Closer
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		app: config.NewAppConfig(),
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithConfig replaces the application configuration. Options applied
// after it can still override single collaborators.
func WithConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) {
		c.app = cfg
	}
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithDataDir(dir))
	}
}

// WithDBURL sets the relational database URL.
func WithDBURL(url string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithDBURL(url))
	}
}

// WithAssets sets the row source and asset directories.
func WithAssets(a config.AssetsConfig) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithAssets(a))
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithEmbedder sets a custom embedder instead of the configured one. The
// caller keeps ownership and closes it.
func WithEmbedder(e search.Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithDetector sets a custom floorplan detector. The caller keeps ownership.
func WithDetector(d floorplan.Detector) Option {
	return func(c *clientConfig) {
		c.detector = d
	}
}

// WithVectorStore sets a custom vector store instead of connecting to the
// configured one. The caller keeps ownership.
func WithVectorStore(v VectorStore) Option {
	return func(c *clientConfig) {
		c.vectorStore = v
	}
}

// WithExtractor sets a custom certificate text extractor.
func WithExtractor(e document.Extractor) Option {
	return func(c *clientConfig) {
		c.extractor = e
	}
}

// WithLoader sets a custom row source loader.
func WithLoader(l property.RowLoader) Option {
	return func(c *clientConfig) {
		c.loader = l
	}
}

// WithReporter subscribes a progress reporter to every run.
func WithReporter(r task.Reporter) Option {
	return func(c *clientConfig) {
		c.reporters = append(c.reporters, r)
	}
}

// WithCloser registers a resource to be closed with the client.
func WithCloser(closer io.Closer) Option {
	return func(c *clientConfig) {
		c.closers = append(c.closers, closer)
	}
}
