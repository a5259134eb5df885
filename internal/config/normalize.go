package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAssembly()
	c.normalizeTranscode()
	c.normalizeFetch()
	c.normalizeS3()
	c.normalizeKafka()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.AudioDir, err = expandPath(c.Paths.AudioDir); err != nil {
		return fmt.Errorf("paths.audio_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("REELSMITH_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeAssembly() {
	if c.Assembly.FetchWorkers <= 0 {
		c.Assembly.FetchWorkers = defaultFetchWorkers
	}
	if c.Assembly.NormalizeWorkers <= 0 {
		c.Assembly.NormalizeWorkers = defaultNormalizeWorkers
	}
	if c.Assembly.ConcatWorkers <= 0 {
		c.Assembly.ConcatWorkers = defaultConcatWorkers
	}
	if c.Assembly.StaleWorkspaceHours <= 0 {
		c.Assembly.StaleWorkspaceHours = defaultStaleWorkspaceHours
	}
	c.Canvas.PixelFormat = strings.ToLower(strings.TrimSpace(c.Canvas.PixelFormat))
	if c.Canvas.PixelFormat == "" {
		c.Canvas.PixelFormat = defaultPixelFormat
	}
}

func (c *Config) normalizeTranscode() {
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
	if c.Transcode.FFmpegBinary == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
	c.Transcode.FFprobeBinary = strings.TrimSpace(c.Transcode.FFprobeBinary)
	if c.Transcode.FFprobeBinary == "" {
		c.Transcode.FFprobeBinary = defaultFFprobeBinary
	}
	c.Transcode.VideoCodec = strings.TrimSpace(c.Transcode.VideoCodec)
	if c.Transcode.VideoCodec == "" {
		c.Transcode.VideoCodec = defaultVideoCodec
	}
	c.Transcode.Preset = strings.TrimSpace(c.Transcode.Preset)
	c.Transcode.AudioCodec = strings.TrimSpace(c.Transcode.AudioCodec)
	if c.Transcode.AudioCodec == "" {
		c.Transcode.AudioCodec = defaultAudioCodec
	}
	c.Transcode.AudioBitrate = strings.TrimSpace(c.Transcode.AudioBitrate)
	if c.Transcode.AudioBitrate == "" {
		c.Transcode.AudioBitrate = defaultAudioBitrate
	}
}

func (c *Config) normalizeFetch() {
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultFetchUserAgent
	}
}

func (c *Config) normalizeS3() {
	c.S3.Region = strings.TrimSpace(c.S3.Region)
	if c.S3.Region == "" {
		if value, ok := os.LookupEnv("AWS_REGION"); ok {
			c.S3.Region = strings.TrimSpace(value)
		}
	}
	c.S3.Profile = strings.TrimSpace(c.S3.Profile)
	c.S3.Endpoint = strings.TrimSpace(c.S3.Endpoint)
}

func (c *Config) normalizeKafka() {
	brokers := make([]string, 0, len(c.Kafka.Brokers))
	seen := make(map[string]struct{}, len(c.Kafka.Brokers))
	for _, broker := range c.Kafka.Brokers {
		trimmed := strings.TrimSpace(broker)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		brokers = append(brokers, trimmed)
	}
	if len(brokers) == 0 {
		if value, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
			for _, broker := range strings.Split(value, ",") {
				if trimmed := strings.TrimSpace(broker); trimmed != "" {
					brokers = append(brokers, trimmed)
				}
			}
		}
	}
	c.Kafka.Brokers = brokers
	c.Kafka.Topic = strings.TrimSpace(c.Kafka.Topic)
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = defaultKafkaTopic
	}
	c.Kafka.GroupID = strings.TrimSpace(c.Kafka.GroupID)
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = defaultKafkaGroupID
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
