package config

import (
	"github.com/modsentry/orchestrator/types"
)

// Config represents a modsentry.yaml configuration file. All values are
// optional; no CLI flag overrides them.
type Config struct {
	Storage  StorageConfig       `yaml:"storage"`
	Queue    QueueConfig         `yaml:"queue"`
	Registry RegistryConfig      `yaml:"registry"`
	HTTP     HTTPConfig          `yaml:"http"`
	Chains   ChainsConfig        `yaml:"chains"`
	AutoRun  types.AutoRunConfig `yaml:"autorun"`
}

// StorageConfig selects and configures the artifact store backend (C1).
type StorageConfig struct {
	Backend     string `yaml:"backend"` // "local" or "s3"
	Path        string `yaml:"path"`    // local backend root, or s3 bucket/prefix
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// QueueConfig configures the Redis-backed queue plane (C3).
type QueueConfig struct {
	URL            string         `yaml:"url"`
	TaskTTL        types.Duration `yaml:"task_ttl"`
	ResultPollWait types.Duration `yaml:"result_poll_wait"`
}

// RegistryConfig configures module discovery and health probing (C4).
type RegistryConfig struct {
	ModuleDirs         []string       `yaml:"module_dirs"`
	HealthcheckPeriod  types.Duration `yaml:"healthcheck_period"`
	HealthcheckTimeout types.Duration `yaml:"healthcheck_timeout"`
	BuildBackoffBase   types.Duration `yaml:"build_backoff_base"`
	BuildBackoffMax    int            `yaml:"build_backoff_max_retries"`
	DockerHost         string         `yaml:"docker_host,omitempty"`
}

// HTTPConfig configures the HTTP surface (httprouter-based).
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// ChainsConfig points at the chain definition store (C5).
type ChainsConfig struct {
	Path string `yaml:"path"`
}
