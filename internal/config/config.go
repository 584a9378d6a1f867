// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8080
	DefaultLogLevel              = "INFO"
	DefaultWorkerCount           = 1
	DefaultSearchLimit           = 5
	DefaultAssetsDir             = "assets"
	DefaultRowSourceName         = "Property_list.xlsx"
	DefaultImageSubdir           = "images"
	DefaultCertificateSubdir     = "certificates"
	DefaultModelSubdir           = "models"
	DefaultDBName                = "smartsense.db"
	DefaultVectorStore           = VectorStoreQdrant
	DefaultQdrantHost            = "localhost"
	DefaultQdrantPort            = 6334
	DefaultQdrantCollection      = "property_search"
	DefaultEmbeddingDimension    = 384
	DefaultDetectorInputSize     = 640
	DefaultDetectorConfidence    = 0.25
	DefaultDetectorIoU           = 0.45
	DefaultMySQLPort             = 3306
	DefaultEndpointTimeout       = 60 * time.Second
	DefaultEndpointMaxRetries    = 5
	DefaultEndpointInitialDelay  = 2 * time.Second
	DefaultEndpointBackoffFactor = 2.0
)

// Vector store kinds.
const (
	VectorStoreQdrant = "qdrant"
	VectorStoreMemory = "memory"
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Endpoint configures a remote embedding service.
type Endpoint struct {
	baseURL       string
	model         string
	apiKey        string
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		timeout:       DefaultEndpointTimeout,
		maxRetries:    DefaultEndpointMaxRetries,
		initialDelay:  DefaultEndpointInitialDelay,
		backoffFactor: DefaultEndpointBackoffFactor,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// IsConfigured returns true if the endpoint has a model.
func (e Endpoint) IsConfigured() bool {
	return e.model != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the max retries.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// NewEndpointWithOptions creates an Endpoint with options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// AssetsConfig locates the ingestion inputs.
type AssetsConfig struct {
	rowSource      string
	imageDir       string
	certificateDir string
}

// NewAssetsConfig derives the default layout under dir.
func NewAssetsConfig(dir string) AssetsConfig {
	return AssetsConfig{
		rowSource:      filepath.Join(dir, DefaultRowSourceName),
		imageDir:       filepath.Join(dir, DefaultImageSubdir),
		certificateDir: filepath.Join(dir, DefaultCertificateSubdir),
	}
}

// RowSource returns the spreadsheet path.
func (a AssetsConfig) RowSource() string { return a.rowSource }

// ImageDir returns the floorplan image directory.
func (a AssetsConfig) ImageDir() string { return a.imageDir }

// CertificateDir returns the certificate document directory.
func (a AssetsConfig) CertificateDir() string { return a.certificateDir }

// WithRowSource returns a copy with a different spreadsheet.
func (a AssetsConfig) WithRowSource(path string) AssetsConfig {
	a.rowSource = path
	return a
}

// WithImageDir returns a copy with a different image directory.
func (a AssetsConfig) WithImageDir(dir string) AssetsConfig {
	a.imageDir = dir
	return a
}

// WithCertificateDir returns a copy with a different certificate directory.
func (a AssetsConfig) WithCertificateDir(dir string) AssetsConfig {
	a.certificateDir = dir
	return a
}

// VectorStoreConfig configures the vector index connection.
type VectorStoreConfig struct {
	kind       string
	host       string
	port       int
	collection string
	apiKey     string
	useTLS     bool
}

// NewVectorStoreConfig creates a VectorStoreConfig with defaults.
func NewVectorStoreConfig() VectorStoreConfig {
	return VectorStoreConfig{
		kind:       DefaultVectorStore,
		host:       DefaultQdrantHost,
		port:       DefaultQdrantPort,
		collection: DefaultQdrantCollection,
	}
}

// Kind returns the vector store implementation ("qdrant" or "memory").
func (v VectorStoreConfig) Kind() string { return v.kind }

// Host returns the Qdrant host.
func (v VectorStoreConfig) Host() string { return v.host }

// Port returns the Qdrant gRPC port.
func (v VectorStoreConfig) Port() int { return v.port }

// Addr returns host:port.
func (v VectorStoreConfig) Addr() string {
	return fmt.Sprintf("%s:%d", v.host, v.port)
}

// Collection returns the collection name.
func (v VectorStoreConfig) Collection() string { return v.collection }

// APIKey returns the Qdrant API key.
func (v VectorStoreConfig) APIKey() string { return v.apiKey }

// UseTLS reports whether the gRPC connection uses TLS.
func (v VectorStoreConfig) UseTLS() bool { return v.useTLS }

// WithKind returns a copy using a different vector store implementation.
func (v VectorStoreConfig) WithKind(kind string) VectorStoreConfig {
	v.kind = kind
	return v
}

// WithCollection returns a copy with a different collection name.
func (v VectorStoreConfig) WithCollection(name string) VectorStoreConfig {
	v.collection = name
	return v
}

// DetectorConfig configures the floorplan detector.
type DetectorConfig struct {
	modelPath   string
	classesPath string
	ortLibrary  string
	inputSize   int
	confidence  float32
	iou         float32
}

// NewDetectorConfig creates a DetectorConfig with defaults.
func NewDetectorConfig() DetectorConfig {
	return DetectorConfig{
		inputSize:  DefaultDetectorInputSize,
		confidence: DefaultDetectorConfidence,
		iou:        DefaultDetectorIoU,
	}
}

// ModelPath returns the ONNX model path.
func (d DetectorConfig) ModelPath() string { return d.modelPath }

// ClassesPath returns the YAML class name file.
func (d DetectorConfig) ClassesPath() string { return d.classesPath }

// ORTLibrary returns the ONNX Runtime shared library path.
func (d DetectorConfig) ORTLibrary() string { return d.ortLibrary }

// InputSize returns the square model input size in pixels.
func (d DetectorConfig) InputSize() int { return d.inputSize }

// Confidence returns the minimum detection score.
func (d DetectorConfig) Confidence() float32 { return d.confidence }

// IoU returns the non-maximum suppression overlap threshold.
func (d DetectorConfig) IoU() float32 { return d.iou }

// IsConfigured returns true if a model path is set.
func (d DetectorConfig) IsConfigured() bool { return d.modelPath != "" }

// WithModelPath returns a copy with a different model file.
func (d DetectorConfig) WithModelPath(path string) DetectorConfig {
	d.modelPath = path
	return d
}

// WithClassesPath returns a copy with a different class name file.
func (d DetectorConfig) WithClassesPath(path string) DetectorConfig {
	d.classesPath = path
	return d
}

// WithInputSize returns a copy with a different input size.
func (d DetectorConfig) WithInputSize(n int) DetectorConfig {
	if n > 0 {
		d.inputSize = n
	}
	return d
}

// WithThresholds returns a copy with different confidence and IoU
// thresholds.
func (d DetectorConfig) WithThresholds(confidence, iou float32) DetectorConfig {
	d.confidence = confidence
	d.iou = iou
	return d
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host               string
	port               int
	dataDir            string
	dbURL              string
	logLevel           string
	logFormat          LogFormat
	assets             AssetsConfig
	vectorStore        VectorStoreConfig
	embeddingEndpoint  *Endpoint
	embeddingModelDir  string
	embeddingDimension int
	detector           DetectorConfig
	workerCount        int
	searchLimit        int
	ingestInterval     time.Duration
	corsOrigins        []string
	apiKeys            []string
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".smartsense"
	}
	return filepath.Join(home, ".smartsense")
}

// DefaultLogger returns the default slog logger for library consumers.
func DefaultLogger() *slog.Logger {
	return slog.Default()
}

// PrepareDataDir creates the data directory if it does not exist and returns it.
func PrepareDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:               DefaultHost,
		port:               DefaultPort,
		dataDir:            dataDir,
		dbURL:              "sqlite:///" + filepath.Join(dataDir, DefaultDBName),
		logLevel:           DefaultLogLevel,
		logFormat:          LogFormatPretty,
		assets:             NewAssetsConfig(DefaultAssetsDir),
		vectorStore:        NewVectorStoreConfig(),
		embeddingModelDir:  filepath.Join(dataDir, DefaultModelSubdir),
		embeddingDimension: DefaultEmbeddingDimension,
		detector:           NewDetectorConfig(),
		workerCount:        DefaultWorkerCount,
		searchLimit:        DefaultSearchLimit,
		corsOrigins:        []string{"*"},
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// Assets returns the ingestion input locations.
func (c AppConfig) Assets() AssetsConfig { return c.assets }

// VectorStore returns the vector store config.
func (c AppConfig) VectorStore() VectorStoreConfig { return c.vectorStore }

// EmbeddingEndpoint returns the remote embedding endpoint, or nil for the local model.
func (c AppConfig) EmbeddingEndpoint() *Endpoint { return c.embeddingEndpoint }

// EmbeddingModelDir returns the directory holding local embedding models.
func (c AppConfig) EmbeddingModelDir() string { return c.embeddingModelDir }

// EmbeddingDimension returns the expected vector dimension.
func (c AppConfig) EmbeddingDimension() int { return c.embeddingDimension }

// Detector returns the floorplan detector config.
func (c AppConfig) Detector() DetectorConfig { return c.detector }

// WorkerCount returns the number of concurrent row workers.
func (c AppConfig) WorkerCount() int { return c.workerCount }

// SearchLimit returns the default search result limit.
func (c AppConfig) SearchLimit() int { return c.searchLimit }

// IngestInterval returns how often the server re-runs ingestion; zero
// means never.
func (c AppConfig) IngestInterval() time.Duration { return c.ingestInterval }

// CORSOrigins returns the allowed CORS origins.
func (c AppConfig) CORSOrigins() []string {
	origins := make([]string, len(c.corsOrigins))
	copy(origins, c.corsOrigins)
	return origins
}

// APIKeys returns the keys accepted by write-protected endpoints.
func (c AppConfig) APIKeys() []string {
	keys := make([]string, len(c.apiKeys))
	copy(keys, c.apiKeys)
	return keys
}

// EnsureDataDir creates the data directory.
func (c AppConfig) EnsureDataDir() error {
	_, err := PrepareDataDir(c.dataDir)
	return err
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory and rebases directory defaults
// that were derived from the previous one.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		if c.dbURL == "sqlite:///"+filepath.Join(c.dataDir, DefaultDBName) {
			c.dbURL = "sqlite:///" + filepath.Join(dir, DefaultDBName)
		}
		if c.embeddingModelDir == filepath.Join(c.dataDir, DefaultModelSubdir) {
			c.embeddingModelDir = filepath.Join(dir, DefaultModelSubdir)
		}
		c.dataDir = dir
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithAssets sets the ingestion input locations.
func WithAssets(a AssetsConfig) AppConfigOption {
	return func(c *AppConfig) { c.assets = a }
}

// WithVectorStore sets the vector store config.
func WithVectorStore(v VectorStoreConfig) AppConfigOption {
	return func(c *AppConfig) { c.vectorStore = v }
}

// WithEmbeddingEndpoint sets the remote embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = &e }
}

// WithEmbeddingModelDir sets the local embedding model directory.
func WithEmbeddingModelDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.embeddingModelDir = dir }
}

// WithEmbeddingDimension sets the expected vector dimension.
func WithEmbeddingDimension(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.embeddingDimension = n
		}
	}
}

// WithDetector sets the detector config.
func WithDetector(d DetectorConfig) AppConfigOption {
	return func(c *AppConfig) { c.detector = d }
}

// WithWorkerCount sets the number of concurrent row workers.
func WithWorkerCount(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.workerCount = n
		}
	}
}

// WithSearchLimit sets the default search result limit.
func WithSearchLimit(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.searchLimit = n
		}
	}
}

// WithIngestInterval sets the periodic ingestion interval.
func WithIngestInterval(d time.Duration) AppConfigOption {
	return func(c *AppConfig) {
		if d >= 0 {
			c.ingestInterval = d
		}
	}
}

// WithAPIKeys sets the keys accepted by write-protected endpoints. An
// empty list disables the check.
func WithAPIKeys(keys []string) AppConfigOption {
	return func(c *AppConfig) { c.apiKeys = keys }
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) AppConfigOption {
	return func(c *AppConfig) {
		if len(origins) > 0 {
			c.corsOrigins = origins
		}
	}
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Credentials are masked.
func (c AppConfig) LogAttrs() []slog.Attr {
	model := "(local)"
	if c.embeddingEndpoint != nil {
		model = c.embeddingEndpoint.Model()
	}
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", MaskDBURL(c.dbURL)),
		slog.String("row_source", c.assets.RowSource()),
		slog.String("image_dir", c.assets.ImageDir()),
		slog.String("certificate_dir", c.assets.CertificateDir()),
		slog.String("vector_store", c.vectorStore.Kind()),
		slog.String("qdrant_addr", c.vectorStore.Addr()),
		slog.String("collection", c.vectorStore.Collection()),
		slog.String("embedding_model", model),
		slog.Int("embedding_dimension", c.embeddingDimension),
		slog.Bool("detector_configured", c.detector.IsConfigured()),
		slog.Int("worker_count", c.workerCount),
	}
}

// MaskDBURL hides credentials in a database URL.
func MaskDBURL(url string) string {
	if url == "" {
		return "(default)"
	}
	if strings.HasPrefix(url, "sqlite:") {
		return url
	}
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return "***"
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***@" + rest[at+1:]
	}
	return url
}

// ParseList parses a comma-separated string, dropping blanks.
func ParseList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
