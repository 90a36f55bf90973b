package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once per process (or per test) and passed explicitly to
// the services that need it.
type Config struct {
	AppName string
	Env     string
	Port    string

	EarthAI  EarthAIConfig
	Artifact ArtifactConfig
	NRI      NRIConfig
	Cloud    CloudConfig

	CredentialSchemaPath string
	TraceDir             string
}

type EarthAIConfig struct {
	Enabled bool
	APIKey  string
	Model   string
	RPS     float64
	Burst   int

	// MaxAttempts and RetryBackoff bound retries of a failed planner call;
	// the backoff doubles per attempt.
	MaxAttempts  int
	RetryBackoff time.Duration
}

type ArtifactConfig struct {
	Backend     string
	Dir         string
	Endpoint    string
	Region      string
	AccessKey   string
	SecretKey   string
	Bucket      string
	UseSSL      bool
	PostgresDSN string
}

type NRIConfig struct {
	SourcePath  string
	UseFixture  bool
	PostgresDSN string
	Table       string
}

type CloudConfig struct {
	GCPProject         string
	BigQueryDataset    string
	EarthEngineProject string
}

const (
	BackendDisk     = "disk"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.Getenv)
}

// LoadFile is Load with an explicit env file, which must exist.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return FromLookup(os.Getenv)
}

// FromLookup builds a Config from an arbitrary variable lookup.
func FromLookup(getenv func(string) string) (*Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	env := firstNonEmpty(get("APP_ENV"), "local")
	port := firstNonEmpty(get("PORT"), ":8000")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	local := strings.EqualFold(env, "local")
	cfg := &Config{
		AppName: "TerraRisk Agent (Personal R&D)",
		Env:     env,
		Port:    port,
		EarthAI: EarthAIConfig{
			Enabled: parseBool(get("EARTH_AI_ENABLED"), false),
			APIKey:  firstNonEmpty(get("GEMINI_API_KEY"), get("GOOGLE_API_KEY")),
			Model:   firstNonEmpty(get("GEMINI_MODEL"), "gemini-2.5-flash"),
			RPS:     parseFloat(get("LLM_RPS"), 0),
			Burst:   parseInt(get("LLM_BURST"), 0),

			MaxAttempts:  parseInt(get("LLM_MAX_ATTEMPTS"), 3),
			RetryBackoff: time.Duration(parseInt(get("LLM_RETRY_BACKOFF_MS"), 300)) * time.Millisecond,
		},
		Artifact: ArtifactConfig{
			Backend:     strings.ToLower(firstNonEmpty(get("ARTIFACT_BACKEND"), BackendDisk)),
			Dir:         firstNonEmpty(get("ARTIFACT_DIR"), filepath.Join("examples", "artifacts")),
			Endpoint:    get("ARTIFACT_S3_ENDPOINT"),
			Region:      firstNonEmpty(get("ARTIFACT_S3_REGION"), "us-east-1"),
			AccessKey:   firstNonEmpty(get("ARTIFACT_S3_ACCESS_KEY"), get("MINIO_ROOT_USER")),
			SecretKey:   firstNonEmpty(get("ARTIFACT_S3_SECRET_KEY"), get("MINIO_ROOT_PASSWORD")),
			Bucket:      firstNonEmpty(get("ARTIFACT_S3_BUCKET"), "terrarisk-artifacts"),
			UseSSL:      parseBool(get("ARTIFACT_S3_USE_SSL"), !local),
			PostgresDSN: get("ARTIFACT_PG_DSN"),
		},
		NRI: NRIConfig{
			SourcePath:  get("NRI_SOURCE_PATH"),
			UseFixture:  parseBool(get("NRI_USE_FIXTURE"), local),
			PostgresDSN: get("NRI_PG_DSN"),
			Table:       firstNonEmpty(get("NRI_PG_TABLE"), "nri_county_hazards"),
		},
		Cloud: CloudConfig{
			GCPProject:         get("GCP_PROJECT"),
			BigQueryDataset:    get("BQ_DATASET"),
			EarthEngineProject: get("EARTHENGINE_PROJECT"),
		},
		CredentialSchemaPath: firstNonEmpty(get("ACTION_CREDENTIAL_SCHEMA_PATH"), filepath.Join("schemas", "action_credential_v0.json")),
		TraceDir:             get("RUN_TRACE_DIR"),
	}
	if cfg.Artifact.Backend == BackendS3 && cfg.Artifact.Endpoint == "" && local {
		cfg.Artifact.Endpoint = firstNonEmpty(get("ARTIFACT_MINIO_ENDPOINT"), "minio:9000")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings and backend prerequisites.
func (c *Config) Validate() error {
	switch c.Env {
	case "local", "staging", "production":
	default:
		return fmt.Errorf("config: APP_ENV must be local, staging or production, got %q", c.Env)
	}
	switch c.Artifact.Backend {
	case BackendDisk, BackendMemory:
	case BackendS3:
		if c.Artifact.Endpoint == "" {
			return fmt.Errorf("config: ARTIFACT_S3_ENDPOINT is required for the s3 backend")
		}
	case BackendPostgres:
		if c.Artifact.PostgresDSN == "" {
			return fmt.Errorf("config: ARTIFACT_PG_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown ARTIFACT_BACKEND %q", c.Artifact.Backend)
	}
	return nil
}

// ArtifactRoot resolves the artifact directory to an absolute path.
func (c *Config) ArtifactRoot() (string, error) {
	return filepath.Abs(c.Artifact.Dir)
}

// ModeLabel is the label reported by the health endpoint.
func (c *Config) ModeLabel() string {
	if c.EarthAI.Enabled {
		return "cloud"
	}
	return "offline"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseBool(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func parseFloat(raw string, def float64) float64 {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
