package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	AudioDir   string `toml:"audio_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Assembly contains timing budget and worker pool settings for a run.
type Assembly struct {
	WordsPerSecond          float64 `toml:"words_per_second"`
	MaxTotalSeconds         float64 `toml:"max_total_seconds"`
	MaxClipsPerSentence     int     `toml:"max_clips_per_sentence"`
	FetchWorkers            int     `toml:"fetch_workers"`
	NormalizeWorkers        int     `toml:"normalize_workers"`
	ConcatWorkers           int     `toml:"concat_workers"`
	AcceptVideoOnlyFallback bool    `toml:"accept_video_only_fallback"`
	StaleWorkspaceHours     int     `toml:"stale_workspace_hours"`
}

// Canvas describes the canonical frame every normalized segment is rendered to.
type Canvas struct {
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	PixelFormat string `toml:"pixel_format"`
	FrameRate   int    `toml:"frame_rate"`
}

// Transcode contains ffmpeg/ffprobe invocation settings.
type Transcode struct {
	FFmpegBinary          string `toml:"ffmpeg_binary"`
	FFprobeBinary         string `toml:"ffprobe_binary"`
	VideoCodec            string `toml:"video_codec"`
	Preset                string `toml:"preset"`
	CRF                   int    `toml:"crf"`
	AudioCodec            string `toml:"audio_codec"`
	AudioBitrate          string `toml:"audio_bitrate"`
	CommandTimeoutSeconds int    `toml:"command_timeout_seconds"`
}

// Fetch contains clip and audio download settings.
type Fetch struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
	MaxMegabytes   int    `toml:"max_megabytes"`
}

// S3 contains settings for s3:// clip and audio locators.
type S3 struct {
	Region       string `toml:"region"`
	Profile      string `toml:"profile"`
	Endpoint     string `toml:"endpoint"`
	UsePathStyle bool   `toml:"use_path_style"`
}

// Kafka contains settings for the optional request intake consumer.
type Kafka struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
	GroupID string   `toml:"group_id"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	OnSuccess      bool   `toml:"on_success"`
	OnFailure      bool   `toml:"on_failure"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelsmith.
//
// Configuration sections by subsystem:
//   - Paths: scratch, output, music and log directories plus the API bind address
//   - Assembly: duration budget and worker pool sizes
//   - Canvas: canonical segment frame
//   - Transcode: ffmpeg binaries, codecs and per-call timeout
//   - Fetch: HTTP download behavior
//   - S3: object storage sources
//   - Kafka: queued request intake
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Assembly      Assembly      `toml:"assembly"`
	Canvas        Canvas        `toml:"canvas"`
	Transcode     Transcode     `toml:"transcode"`
	Fetch         Fetch         `toml:"fetch"`
	S3            S3            `toml:"s3"`
	Kafka         Kafka         `toml:"kafka"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelsmith/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelsmith.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
// AudioDir is only read from, so it is not created.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RunStorePath returns the SQLite database used for run history.
func (c *Config) RunStorePath() string {
	return filepath.Join(c.Paths.LogDir, "runs.db")
}

// LogFilePath returns the file every command mirrors its log output to.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "reelsmith.log")
}

// LockPath returns the single-instance lock file used by the service.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "reelsmith.lock")
}

// CommandTimeout returns the per-invocation deadline for ffmpeg and ffprobe.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Transcode.CommandTimeoutSeconds) * time.Second
}

// FetchTimeout returns the deadline applied to each clip or audio download.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// NotifyTimeout returns the deadline for a single ntfy request.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// StaleWorkspaceAge returns how old an abandoned scratch workspace must be before sweeping.
func (c *Config) StaleWorkspaceAge() time.Duration {
	return time.Duration(c.Assembly.StaleWorkspaceHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
