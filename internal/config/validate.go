package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAssembly(); err != nil {
		return err
	}
	if err := c.validateCanvas(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateKafka(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.StagingDir == c.Paths.OutputDir {
		return errors.New("paths.output_dir must differ from paths.staging_dir")
	}
	return nil
}

func (c *Config) validateAssembly() error {
	if c.Assembly.WordsPerSecond <= 0 {
		return errors.New("assembly.words_per_second must be positive")
	}
	if c.Assembly.MaxTotalSeconds <= 0 {
		return errors.New("assembly.max_total_seconds must be positive")
	}
	return ensurePositiveMap(map[string]int{
		"assembly.max_clips_per_sentence": c.Assembly.MaxClipsPerSentence,
		"assembly.fetch_workers":          c.Assembly.FetchWorkers,
		"assembly.normalize_workers":      c.Assembly.NormalizeWorkers,
		"assembly.concat_workers":         c.Assembly.ConcatWorkers,
		"fetch.timeout_seconds":           c.Fetch.TimeoutSeconds,
	})
}

func (c *Config) validateCanvas() error {
	if err := ensurePositiveMap(map[string]int{
		"canvas.width":      c.Canvas.Width,
		"canvas.height":     c.Canvas.Height,
		"canvas.frame_rate": c.Canvas.FrameRate,
	}); err != nil {
		return err
	}
	if c.Canvas.Width%2 != 0 || c.Canvas.Height%2 != 0 {
		return errors.New("canvas.width and canvas.height must be even for yuv420p output")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.CommandTimeoutSeconds <= 0 {
		return errors.New("transcode.command_timeout_seconds must be positive")
	}
	if c.Transcode.CRF < 0 || c.Transcode.CRF > 51 {
		return errors.New("transcode.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateKafka() error {
	if !c.Kafka.Enabled {
		return nil
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers must be set when kafka.enabled is true (or set KAFKA_BROKERS)")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	topic, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || (topic.Scheme != "http" && topic.Scheme != "https") || topic.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) topic URL, got %q", c.Notifications.NtfyTopic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
