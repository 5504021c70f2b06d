// Package config loads and validates the engine's layered configuration:
// a root YAML/JSON5 file (with $include support and ${VAR} expansion),
// environment-variable overrides, and field defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kubiyabot/skill-engine/internal/audit"
)

// Config is the root configuration structure for the engine process.
type Config struct {
	DataHome string `yaml:"data_home"`
	Manifest ManifestPathConfig `yaml:"manifest"`

	Instance     InstanceConfig     `yaml:"instance"`
	Credentials  CredentialsConfig  `yaml:"credentials"`
	Audit        audit.Config       `yaml:"audit"`
	Sandbox      SandboxConfig      `yaml:"sandbox"`
	ModuleRuntime    ModuleRuntimeConfig    `yaml:"module_runtime"`
	ContainerRuntime ContainerRuntimeConfig `yaml:"container_runtime"`
	NativeRuntime    NativeRuntimeConfig    `yaml:"native_runtime"`
	Search       SearchConfig       `yaml:"search"`
	Jobs         JobsConfig         `yaml:"jobs"`
	Logging      LoggingConfig      `yaml:"logging"`
	Tracing      TracingConfig      `yaml:"tracing"`
}

// ManifestPathConfig locates the skill manifest and skill source roots.
type ManifestPathConfig struct {
	// Path is the path to the .skill-engine.toml manifest file.
	Path string `yaml:"path"`

	// SkillsRoot is the directory SKILL.md docs are discovered under when
	// not otherwise named by the manifest.
	SkillsRoot string `yaml:"skills_root"`
}

// InstanceConfig controls default behavior of the instance manager and the
// per-(skill,instance) concurrency limiter.
type InstanceConfig struct {
	// Root is the directory instance config.toml files live under.
	// Defaults to "<data_home>/instances".
	Root string `yaml:"root"`

	// MaxConcurrentRequests bounds in-flight executions per (skill, instance)
	// pair. Requests beyond the bound queue FIFO. Default 10.
	MaxConcurrentRequests int `yaml:"max_concurrent_requests"`

	// SecretKeyPatterns lists substrings (case-insensitive) that classify a
	// config key set from the command line as a secret by default.
	SecretKeyPatterns []string `yaml:"secret_key_patterns"`
}

// CredentialsConfig controls the credential store facade.
type CredentialsConfig struct {
	// ServiceName namespaces every keychain entry: "<service>/<skill>/<instance>/<key>".
	ServiceName string `yaml:"service_name"`

	// CacheTTL bounds how long a resolved secret is cached in memory before
	// a fresh keychain read is required. Default 5m; 0 disables caching.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// SandboxConfig selects whether and how module-runtime invocations are
// isolated into per-key sandboxes.
type SandboxConfig struct {
	// Enabled toggles sandboxing of module-runtime invocations entirely.
	Enabled bool `yaml:"enabled"`

	// Mode is "all" (every invocation sandboxed) or "non-main" (the
	// manifest's designated primary skill runs unsandboxed).
	Mode string `yaml:"mode"`

	// Scope controls sandbox reuse: "instance" (default, one sandbox per
	// (skill,instance)), "request" (fresh sandbox per invocation), or
	// "shared" (one sandbox pool for the whole process).
	Scope string `yaml:"scope"`
}

// ModuleRuntimeConfig configures the sandboxed module runtime.
type ModuleRuntimeConfig struct {
	// CacheDir holds AOT-compiled module artefacts, keyed by content hash.
	// Defaults to "<data_home>/cache/modules".
	CacheDir string `yaml:"cache_dir"`

	// Backend selects the isolation backend: "firecracker" (pooled
	// microVMs, requires KVM) or "docker" (throwaway containers).
	Backend string `yaml:"backend"`

	// PoolSize is the number of warm sandboxes kept ready per key.
	PoolSize int `yaml:"pool_size"`

	// MaxPoolSize bounds how large a sandbox pool may grow under load.
	MaxPoolSize int `yaml:"max_pool_size"`

	// ScratchSweepInterval is how often the background sweeper reaps
	// abandoned scratch directories. Default 10m.
	ScratchSweepInterval time.Duration `yaml:"scratch_sweep_interval"`

	// ScratchMaxAge is how old an unreaped scratch directory must be before
	// the sweeper deletes it. Default 1h.
	ScratchMaxAge time.Duration `yaml:"scratch_max_age"`
}

// ContainerRuntimeConfig configures the container runtime.
type ContainerRuntimeConfig struct {
	// Binary is the container CLI to invoke ("docker" or "podman").
	Binary string `yaml:"binary"`

	// RequireResourceLimits rejects container configs that omit a memory
	// limit or a CPU limit.
	RequireResourceLimits bool `yaml:"require_resource_limits"`

	// DefaultNetwork is applied when a skill's container config leaves
	// Network unset. Default "none".
	DefaultNetwork string `yaml:"default_network"`

	// DefaultTimeout bounds how long a single container invocation may run
	// absent an explicit per-call context deadline.
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	// BlockedBindPrefixes lists host path prefixes that may never be bind
	// mounted into a container.
	BlockedBindPrefixes []string `yaml:"blocked_bind_prefixes"`
}

// NativeRuntimeConfig configures the native (host subprocess) runtime.
type NativeRuntimeConfig struct {
	// DefaultTimeout bounds how long a native invocation may run absent an
	// explicit per-call context deadline.
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	// InheritEnv copies the host process environment into native
	// invocations before overlaying instance config. Default false.
	InheritEnv bool `yaml:"inherit_env"`
}

// SearchConfig configures the hybrid search pipeline.
type SearchConfig struct {
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Dense       DenseRetrievalConfig `yaml:"dense"`
	Sparse      SparseRetrievalConfig `yaml:"sparse"`
	Fusion      FusionConfig      `yaml:"fusion"`
	Rerank      RerankConfig      `yaml:"rerank"`
	Compression CompressionConfig `yaml:"compression"`
	Store       VectorStoreConfig `yaml:"store"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is "ollama", "openai", or "local".
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

// DenseRetrievalConfig controls the dense (vector) retrieval stage.
type DenseRetrievalConfig struct {
	// OverretrieveMultiplier is m: each source returns top k*m candidates
	// before fusion. Default 3.
	OverretrieveMultiplier int `yaml:"overretrieve_multiplier"`
}

// SparseRetrievalConfig controls the BM25 retrieval stage.
type SparseRetrievalConfig struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

// FusionConfig selects the fusion method and its parameters.
type FusionConfig struct {
	// Method is "rrf" (default), "weighted_sum", or "max".
	Method string `yaml:"method"`

	// RRFK is the K constant in reciprocal rank fusion. Default 60.
	RRFK int `yaml:"rrf_k"`

	// DenseWeight and SparseWeight are only consulted by "weighted_sum".
	DenseWeight  float64 `yaml:"dense_weight"`
	SparseWeight float64 `yaml:"sparse_weight"`
}

// RerankConfig controls the optional cross-encoder reranking stage.
type RerankConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model"`
	MaxDocuments int     `yaml:"max_documents"`
	MinScore     float64 `yaml:"min_score"`
}

// CompressionConfig controls the optional context-compression stage.
type CompressionConfig struct {
	Enabled    bool `yaml:"enabled"`
	TokenBudget int `yaml:"token_budget"`
}

// VectorStoreConfig selects the vector/BM25 store backend.
type VectorStoreConfig struct {
	// Backend is "memory" or "pgvector".
	Backend   string `yaml:"backend"`
	DSN       string `yaml:"dsn"`
	Dimension int    `yaml:"dimension"`

	// BM25IndexDir holds the persisted inverted index.
	// Defaults to "<data_home>/index/bm25".
	BM25IndexDir string `yaml:"bm25_index_dir"`
}

// JobsConfig configures the background job queue used by the scratch-dir
// sweeper and incremental re-indexing.
type JobsConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`

	// LeaseTTL is how long a leased job is held before it is considered
	// abandoned and eligible for re-lease.
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

// LoggingConfig configures the process-wide slog handler.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`

	// Format is "json" (production default) or "text" (development).
	Format string `yaml:"format"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	ServiceName  string  `yaml:"service_name"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// Load reads, expands, merges (resolving $include directives), and
// validates the configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataHome == "" {
		cfg.DataHome = defaultDataHome()
	}
	if cfg.Instance.Root == "" {
		cfg.Instance.Root = cfg.DataHome + "/instances"
	}
	if cfg.Instance.MaxConcurrentRequests <= 0 {
		cfg.Instance.MaxConcurrentRequests = 10
	}
	if len(cfg.Instance.SecretKeyPatterns) == 0 {
		cfg.Instance.SecretKeyPatterns = []string{"secret", "password", "token", "key"}
	}

	if cfg.Credentials.ServiceName == "" {
		cfg.Credentials.ServiceName = "skill-engine"
	}
	if cfg.Credentials.CacheTTL == 0 {
		cfg.Credentials.CacheTTL = 5 * time.Minute
	}

	applyAuditDefaults(&cfg.Audit)

	if cfg.Sandbox.Mode == "" {
		cfg.Sandbox.Mode = "all"
	}
	if cfg.Sandbox.Scope == "" {
		cfg.Sandbox.Scope = "instance"
	}

	if cfg.ModuleRuntime.CacheDir == "" {
		cfg.ModuleRuntime.CacheDir = cfg.DataHome + "/cache/modules"
	}
	if cfg.ModuleRuntime.Backend == "" {
		cfg.ModuleRuntime.Backend = "firecracker"
	}
	if cfg.ModuleRuntime.PoolSize <= 0 {
		cfg.ModuleRuntime.PoolSize = 2
	}
	if cfg.ModuleRuntime.MaxPoolSize <= 0 {
		cfg.ModuleRuntime.MaxPoolSize = 8
	}
	if cfg.ModuleRuntime.ScratchSweepInterval <= 0 {
		cfg.ModuleRuntime.ScratchSweepInterval = 10 * time.Minute
	}
	if cfg.ModuleRuntime.ScratchMaxAge <= 0 {
		cfg.ModuleRuntime.ScratchMaxAge = time.Hour
	}

	if cfg.ContainerRuntime.Binary == "" {
		cfg.ContainerRuntime.Binary = "docker"
	}
	if cfg.ContainerRuntime.DefaultNetwork == "" {
		cfg.ContainerRuntime.DefaultNetwork = "none"
	}
	if cfg.ContainerRuntime.DefaultTimeout <= 0 {
		cfg.ContainerRuntime.DefaultTimeout = 2 * time.Minute
	}
	if len(cfg.ContainerRuntime.BlockedBindPrefixes) == 0 {
		cfg.ContainerRuntime.BlockedBindPrefixes = []string{
			"/etc/passwd", "/etc/shadow", "/root", "docker.sock",
		}
	}

	if cfg.NativeRuntime.DefaultTimeout <= 0 {
		cfg.NativeRuntime.DefaultTimeout = time.Minute
	}

	applySearchDefaults(&cfg.Search)

	if cfg.Jobs.Backend == "" {
		cfg.Jobs.Backend = "memory"
	}
	if cfg.Jobs.LeaseTTL <= 0 {
		cfg.Jobs.LeaseTTL = 5 * time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "skill-engine"
	}
}

func applyAuditDefaults(cfg *audit.Config) {
	def := audit.DefaultConfig()
	if !cfg.Enabled && cfg.Output == "" {
		*cfg = def
		return
	}
	if cfg.Output == "" {
		cfg.Output = def.Output
	}
	if cfg.Format == "" {
		cfg.Format = def.Format
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
}

func applySearchDefaults(cfg *SearchConfig) {
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Dense.OverretrieveMultiplier <= 0 {
		cfg.Dense.OverretrieveMultiplier = 3
	}
	if cfg.Sparse.K1 == 0 {
		cfg.Sparse.K1 = 1.2
	}
	if cfg.Sparse.B == 0 {
		cfg.Sparse.B = 0.75
	}
	if cfg.Fusion.Method == "" {
		cfg.Fusion.Method = "rrf"
	}
	if cfg.Fusion.RRFK <= 0 {
		cfg.Fusion.RRFK = 60
	}
	if cfg.Fusion.DenseWeight == 0 && cfg.Fusion.SparseWeight == 0 {
		cfg.Fusion.DenseWeight = 0.5
		cfg.Fusion.SparseWeight = 0.5
	}
	if cfg.Rerank.MaxDocuments <= 0 {
		cfg.Rerank.MaxDocuments = 50
	}
	if cfg.Compression.TokenBudget <= 0 {
		cfg.Compression.TokenBudget = 2000
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.Dimension <= 0 {
		cfg.Store.Dimension = 768
	}
}

func defaultDataHome() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home + "/.skill-engine"
	}
	return ".skill-engine"
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if value := strings.TrimSpace(os.Getenv("SKILL_ENGINE_DATA_HOME")); value != "" {
		cfg.DataHome = value
	}
	if value := strings.TrimSpace(os.Getenv("SKILL_ENGINE_MANIFEST_PATH")); value != "" {
		cfg.Manifest.Path = value
	}
	if value := strings.TrimSpace(os.Getenv("SKILL_ENGINE_CREDENTIALS_SERVICE")); value != "" {
		cfg.Credentials.ServiceName = value
	}
	if value := strings.TrimSpace(os.Getenv("SKILL_ENGINE_MAX_CONCURRENT_REQUESTS")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Instance.MaxConcurrentRequests = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("SKILL_ENGINE_LOG_LEVEL")); value != "" {
		cfg.Logging.Level = value
	}
	if value := strings.TrimSpace(os.Getenv("SKILL_ENGINE_LOG_FORMAT")); value != "" {
		cfg.Logging.Format = value
	}
	if value := strings.TrimSpace(os.Getenv("SKILL_ENGINE_EMBEDDING_API_KEY")); value != "" {
		cfg.Search.Embedding.APIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("SKILL_ENGINE_SEARCH_STORE_DSN")); value != "" {
		cfg.Search.Store.DSN = value
	}
}

// ConfigValidationError reports one or more field-level problems found
// while validating a loaded Config.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	var issues []string

	if cfg.Instance.MaxConcurrentRequests <= 0 {
		issues = append(issues, "instance.max_concurrent_requests must be positive")
	}
	if cfg.Audit.SampleRate < 0 || cfg.Audit.SampleRate > 1 {
		issues = append(issues, "audit.sample_rate must be between 0 and 1")
	}
	switch cfg.Sandbox.Mode {
	case "all", "non-main":
	default:
		issues = append(issues, fmt.Sprintf("sandbox.mode %q is not one of: all, non-main", cfg.Sandbox.Mode))
	}
	switch cfg.Search.Fusion.Method {
	case "rrf", "weighted_sum", "max":
	default:
		issues = append(issues, fmt.Sprintf("search.fusion.method %q is not one of: rrf, weighted_sum, max", cfg.Search.Fusion.Method))
	}
	if cfg.Search.Store.Dimension <= 0 {
		issues = append(issues, "search.store.dimension must be positive")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("logging.level %q is not one of: debug, info, warn, error", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		issues = append(issues, fmt.Sprintf("logging.format %q is not one of: json, text", cfg.Logging.Format))
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
