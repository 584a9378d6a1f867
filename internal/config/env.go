package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., EMBEDDING_ENDPOINT_BASE_URL).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.smartsense
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: DB_URL
	// Default: composed from DB_* when DB_HOST is set, else sqlite:///{data_dir}/smartsense.db
	DBURL string `envconfig:"DB_URL"`

	// DB holds discrete MySQL connection settings.
	DB DBEnv `envconfig:"DB"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// AssetsDir is the root of the ingestion inputs.
	// Env: ASSETS_DIR (default: assets)
	AssetsDir string `envconfig:"ASSETS_DIR" default:"assets"`

	// RowSource is the spreadsheet path.
	// Env: ROW_SOURCE
	// Default: {assets_dir}/Property_list.xlsx
	RowSource string `envconfig:"ROW_SOURCE"`

	// ImageDir is the floorplan image directory.
	// Env: IMAGE_DIR
	// Default: {assets_dir}/images
	ImageDir string `envconfig:"IMAGE_DIR"`

	// CertificateDir is the certificate document directory.
	// Env: CERTIFICATE_DIR
	// Default: {assets_dir}/certificates
	CertificateDir string `envconfig:"CERTIFICATE_DIR"`

	// VectorStore selects the vector index implementation (qdrant or memory).
	// Env: VECTOR_STORE (default: qdrant)
	VectorStore string `envconfig:"VECTOR_STORE" default:"qdrant"`

	// Qdrant configures the Qdrant connection.
	Qdrant QdrantEnv `envconfig:"QDRANT"`

	// EmbeddingEndpoint configures a remote embedding service.
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// EmbeddingModelDir is the directory holding local embedding models.
	// Env: EMBEDDING_MODEL_DIR
	// Default: {data_dir}/models
	EmbeddingModelDir string `envconfig:"EMBEDDING_MODEL_DIR"`

	// EmbeddingDimension is the expected vector size.
	// Env: EMBEDDING_DIMENSION (default: 384)
	EmbeddingDimension int `envconfig:"EMBEDDING_DIMENSION" default:"384"`

	// Detector configures the floorplan detector.
	Detector DetectorEnv `envconfig:"DETECTOR"`

	// WorkerCount is the number of concurrent row workers.
	// Env: WORKER_COUNT (default: 1)
	WorkerCount int `envconfig:"WORKER_COUNT" default:"1"`

	// IngestInterval re-runs ingestion on a timer while serving; zero
	// disables it.
	// Env: INGEST_INTERVAL (default: 0)
	IngestInterval time.Duration `envconfig:"INGEST_INTERVAL" default:"0"`

	// SearchLimit is the default search result limit.
	// Env: SEARCH_LIMIT (default: 5)
	SearchLimit int `envconfig:"SEARCH_LIMIT" default:"5"`

	// CORSOrigins is a comma-separated list of allowed origins.
	// Env: CORS_ORIGINS (default: *)
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"*"`

	// APIKeys is a comma-separated list of keys required by POST /ingest.
	// Env: API_KEYS
	APIKeys string `envconfig:"API_KEYS"`
}

// DBEnv holds discrete database settings.
//
// Nested settings carry no envconfig tag: a tagged field is also looked up
// under its bare tag, which would read HOST, PORT and USER here.
type DBEnv struct {
	// Env: DB_USER
	User string `split_words:"true"`
	// Env: DB_PASSWORD
	Password string `split_words:"true"`
	// Env: DB_HOST
	Host string `split_words:"true"`
	// Env: DB_PORT (default: 3306)
	Port int `split_words:"true" default:"3306"`
	// Env: DB_NAME
	Name string `split_words:"true"`
}

// IsConfigured returns true if a database host is set.
func (d DBEnv) IsConfigured() bool {
	return d.Host != ""
}

// MySQLURL composes a mysql:// URL in go-sql-driver DSN form.
func (d DBEnv) MySQLURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}

// QdrantEnv holds environment configuration for Qdrant.
type QdrantEnv struct {
	// Env: QDRANT_HOST (default: localhost)
	Host string `split_words:"true" default:"localhost"`
	// Env: QDRANT_PORT (default: 6334)
	Port int `split_words:"true" default:"6334"`
	// Env: QDRANT_COLLECTION (default: property_search)
	Collection string `split_words:"true" default:"property_search"`
	// Env: QDRANT_API_KEY
	APIKey string `split_words:"true"`
	// Env: QDRANT_TLS (default: false)
	TLS bool `split_words:"true" default:"false"`
}

// EndpointEnv holds environment configuration for an AI endpoint.
type EndpointEnv struct {
	// BaseURL is the base URL for the endpoint.
	// Env: *_BASE_URL
	BaseURL string `split_words:"true"`

	// Model is the model identifier (e.g., text-embedding-3-small).
	// Env: *_MODEL
	Model string `split_words:"true"`

	// APIKey is the API key for authentication.
	// Env: *_API_KEY
	APIKey string `split_words:"true"`

	// Timeout is the request timeout in seconds.
	// Env: *_TIMEOUT (default: 60)
	Timeout float64 `split_words:"true" default:"60"`

	// MaxRetries is the maximum number of retries.
	// Env: *_MAX_RETRIES (default: 5)
	MaxRetries int `split_words:"true" default:"5"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: *_INITIAL_DELAY (default: 2.0)
	InitialDelay float64 `split_words:"true" default:"2.0"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: *_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `split_words:"true" default:"2.0"`
}

// DetectorEnv holds environment configuration for the floorplan detector.
type DetectorEnv struct {
	// Env: DETECTOR_MODEL_PATH
	ModelPath string `split_words:"true"`
	// Env: DETECTOR_CLASSES_PATH
	ClassesPath string `split_words:"true"`
	// Env: DETECTOR_ORT_LIBRARY
	ORTLibrary string `split_words:"true"`
	// Env: DETECTOR_INPUT_SIZE (default: 640)
	InputSize int `split_words:"true" default:"640"`
	// Env: DETECTOR_CONFIDENCE (default: 0.25)
	Confidence float32 `split_words:"true" default:"0.25"`
	// Env: DETECTOR_IOU (default: 0.45)
	IOU float32 `split_words:"true" default:"0.45"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "SMARTSENSE" would require SMARTSENSE_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Normalize resolves values that depend on other values: the database URL
// from discrete DB_* settings and the asset paths from ASSETS_DIR.
func (e EnvConfig) Normalize() EnvConfig {
	if e.DBURL == "" && e.DB.IsConfigured() {
		e.DBURL = e.DB.MySQLURL()
	}
	if e.AssetsDir == "" {
		e.AssetsDir = DefaultAssetsDir
	}
	if e.RowSource == "" {
		e.RowSource = filepath.Join(e.AssetsDir, DefaultRowSourceName)
	}
	if e.ImageDir == "" {
		e.ImageDir = filepath.Join(e.AssetsDir, DefaultImageSubdir)
	}
	if e.CertificateDir == "" {
		e.CertificateDir = filepath.Join(e.AssetsDir, DefaultCertificateSubdir)
	}
	e.VectorStore = strings.ToLower(strings.TrimSpace(e.VectorStore))
	return e
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.Host != "" {
		cfg = applyOption(cfg, WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = applyOption(cfg, WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}

	assets := NewAssetsConfig(DefaultAssetsDir)
	if e.RowSource != "" {
		assets = assets.WithRowSource(e.RowSource)
	}
	if e.ImageDir != "" {
		assets = assets.WithImageDir(e.ImageDir)
	}
	if e.CertificateDir != "" {
		assets = assets.WithCertificateDir(e.CertificateDir)
	}
	cfg = applyOption(cfg, WithAssets(assets))

	cfg = applyOption(cfg, WithVectorStore(e.Qdrant.ToVectorStoreConfig(e.VectorStore)))

	if e.EmbeddingEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint()))
	}
	if e.EmbeddingModelDir != "" {
		cfg = applyOption(cfg, WithEmbeddingModelDir(e.EmbeddingModelDir))
	}
	cfg = applyOption(cfg, WithEmbeddingDimension(e.EmbeddingDimension))
	cfg = applyOption(cfg, WithDetector(e.Detector.ToDetectorConfig()))
	cfg = applyOption(cfg, WithWorkerCount(e.WorkerCount))
	cfg = applyOption(cfg, WithSearchLimit(e.SearchLimit))
	cfg = applyOption(cfg, WithIngestInterval(e.IngestInterval))
	cfg = applyOption(cfg, WithCORSOrigins(ParseList(e.CORSOrigins)))
	cfg = applyOption(cfg, WithAPIKeys(ParseList(e.APIKeys)))

	return cfg
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// IsConfigured returns true if the endpoint has a model configured.
func (e EndpointEnv) IsConfigured() bool {
	return e.Model != ""
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	opts := []EndpointOption{
		WithModel(e.Model),
		WithTimeout(time.Duration(e.Timeout * float64(time.Second))),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(time.Duration(e.InitialDelay * float64(time.Second))),
		WithBackoffFactor(e.BackoffFactor),
	}
	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}
	return NewEndpointWithOptions(opts...)
}

// ToVectorStoreConfig converts QdrantEnv to VectorStoreConfig.
func (q QdrantEnv) ToVectorStoreConfig(kind string) VectorStoreConfig {
	v := NewVectorStoreConfig()
	if kind != "" {
		v.kind = kind
	}
	if q.Host != "" {
		v.host = q.Host
	}
	if q.Port > 0 {
		v.port = q.Port
	}
	if q.Collection != "" {
		v.collection = q.Collection
	}
	v.apiKey = q.APIKey
	v.useTLS = q.TLS
	return v
}

// ToDetectorConfig converts DetectorEnv to DetectorConfig.
func (d DetectorEnv) ToDetectorConfig() DetectorConfig {
	c := NewDetectorConfig()
	c.modelPath = d.ModelPath
	c.classesPath = d.ClassesPath
	c.ortLibrary = d.ORTLibrary
	if d.InputSize > 0 {
		c.inputSize = d.InputSize
	}
	if d.Confidence > 0 {
		c.confidence = d.Confidence
	}
	if d.IOU > 0 {
		c.iou = d.IOU
	}
	return c
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
