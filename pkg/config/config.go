// Package config provides typed, read-only access to zoneweaverd's
// configuration sections, loaded once from a YAML file at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	ArtifactStorage ArtifactStorageConfig `yaml:"artifact_storage"`
	Provisioning    ProvisioningConfig    `yaml:"provisioning"`
	HostMonitoring  HostMonitoringConfig  `yaml:"host_monitoring"`
	SystemLogs      SystemLogsConfig      `yaml:"system_logs"`
	TaskQueue       TaskQueueConfig       `yaml:"task_queue"`
}

// ArtifactStorageConfig controls the ArtifactEngine.
type ArtifactStorageConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Download DownloadConfig `yaml:"download"`
	Scanning ScanningConfig `yaml:"scanning"`
}

// DownloadConfig tunes artifact_download_url behavior.
type DownloadConfig struct {
	TimeoutSeconds          int `yaml:"timeout_seconds"`
	ProgressUpdateSeconds   int `yaml:"progress_update_seconds"`
}

// ScanningConfig lists the extensions recognized per artifact type.
type ScanningConfig struct {
	SupportedExtensions map[string][]string `yaml:"supported_extensions"`
}

// ProvisioningConfig controls SSHSession defaults for zone provisioning.
type ProvisioningConfig struct {
	SSH SSHConfig `yaml:"ssh"`
}

// SSHConfig is the default SSH connection policy.
type SSHConfig struct {
	KeyPath            string `yaml:"key_path"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	PollIntervalSeconds int   `yaml:"poll_interval_seconds"`
}

// HostMonitoringConfig controls gopsutil-backed host reads.
type HostMonitoringConfig struct {
	Performance PerformanceConfig `yaml:"performance"`
}

// PerformanceConfig bounds host-stat command execution.
type PerformanceConfig struct {
	CommandTimeoutSeconds int `yaml:"command_timeout"`
	BatchSize             int `yaml:"batch_size"`
}

// SystemLogsConfig controls the LogStreamManager.
type SystemLogsConfig struct {
	Enabled              bool           `yaml:"enabled"`
	AllowedPaths         []string       `yaml:"allowed_paths"`
	MaxConcurrentStreams int            `yaml:"max_concurrent_streams"`
	Security             SecurityConfig `yaml:"security"`
}

// SecurityConfig bounds what files /stream/start may open.
type SecurityConfig struct {
	MaxFileSizeMB     int      `yaml:"max_file_size_mb"`
	ForbiddenPatterns []string `yaml:"forbidden_patterns"`
}

// TaskQueueConfig tunes the scheduler loop and concurrency caps.
type TaskQueueConfig struct {
	GlobalMax            int           `yaml:"global_max"`
	TickInterval         time.Duration `yaml:"tick_interval"`
	CrashRecoveryGrace   time.Duration `yaml:"crash_recovery_grace"`
	RetentionCompleted   time.Duration `yaml:"retention_completed"`
	RetentionFailed      time.Duration `yaml:"retention_failed"`
	CleanupInterval      time.Duration `yaml:"cleanup_interval"`
}

// Provider is the read-only configuration surface every collaborator
// depends on; it is deliberately just the loaded Config, since nothing
// in this process mutates configuration after startup.
type Provider struct {
	cfg Config
}

// Load reads and parses a YAML configuration file into a Provider,
// applying defaults for any unset tunable.
func Load(path string) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &Provider{cfg: cfg}, nil
}

func applyDefaults(cfg *Config) {
	if cfg.TaskQueue.GlobalMax == 0 {
		cfg.TaskQueue.GlobalMax = 8
	}
	if cfg.TaskQueue.TickInterval == 0 {
		cfg.TaskQueue.TickInterval = 500 * time.Millisecond
	}
	if cfg.TaskQueue.CrashRecoveryGrace == 0 {
		cfg.TaskQueue.CrashRecoveryGrace = 5 * time.Minute
	}
	if cfg.TaskQueue.RetentionCompleted == 0 {
		cfg.TaskQueue.RetentionCompleted = 7 * 24 * time.Hour
	}
	if cfg.TaskQueue.RetentionFailed == 0 {
		cfg.TaskQueue.RetentionFailed = 30 * 24 * time.Hour
	}
	if cfg.TaskQueue.CleanupInterval == 0 {
		cfg.TaskQueue.CleanupInterval = time.Hour
	}
	if cfg.Provisioning.SSH.TimeoutSeconds == 0 {
		cfg.Provisioning.SSH.TimeoutSeconds = 30
	}
	if cfg.Provisioning.SSH.PollIntervalSeconds == 0 {
		cfg.Provisioning.SSH.PollIntervalSeconds = 2
	}
	if cfg.HostMonitoring.Performance.CommandTimeoutSeconds == 0 {
		cfg.HostMonitoring.Performance.CommandTimeoutSeconds = 10
	}
	if cfg.SystemLogs.Security.MaxFileSizeMB == 0 {
		cfg.SystemLogs.Security.MaxFileSizeMB = 50
	}
	if cfg.SystemLogs.MaxConcurrentStreams == 0 {
		cfg.SystemLogs.MaxConcurrentStreams = 20
	}
}

// ArtifactStorage returns the artifact storage section.
func (p *Provider) ArtifactStorage() ArtifactStorageConfig { return p.cfg.ArtifactStorage }

// Provisioning returns the provisioning section.
func (p *Provider) Provisioning() ProvisioningConfig { return p.cfg.Provisioning }

// HostMonitoring returns the host monitoring section.
func (p *Provider) HostMonitoring() HostMonitoringConfig { return p.cfg.HostMonitoring }

// SystemLogs returns the system logs section.
func (p *Provider) SystemLogs() SystemLogsConfig { return p.cfg.SystemLogs }

// TaskQueue returns the task queue tuning section.
func (p *Provider) TaskQueue() TaskQueueConfig { return p.cfg.TaskQueue }
