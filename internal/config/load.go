package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrValidationFailed 配置校验失败，具体字段错误通过 errors.Join 附在其后
var ErrValidationFailed = errors.New("config validation failed")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load 读取 YAML 配置，填充默认值并校验
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// MustLoad 同 Load，失败直接 panic，仅用于进程启动
func MustLoad(path string) *Config {
	c, err := Load(path)
	if err != nil {
		panic(err)
	}
	return c
}

func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ApplyDefaults 零值字段填充默认值
func (c *Config) ApplyDefaults() {
	if c.LogConf.Format == "" {
		c.LogConf.Format = "console"
	}
	if c.LogConf.Level == "" {
		c.LogConf.Level = "info"
	}
	if c.PipelineConf.ChannelBufferSize <= 0 {
		c.PipelineConf.ChannelBufferSize = 1_000
	}
	if c.PipelineConf.ShutdownStrategy == "" {
		c.PipelineConf.ShutdownStrategy = "process_pending"
	}
	if c.PipelineConf.MetricsFlushIntervalMs <= 0 {
		c.PipelineConf.MetricsFlushIntervalMs = 5_000
	}
	if c.MetricsConf.ServiceName == "" {
		c.MetricsConf.ServiceName = "sol-ingest"
	}
	if c.MetricsConf.Namespace == "" {
		c.MetricsConf.Namespace = "sol_ingest"
	}
	if c.KafkaProducer.SendTimeoutMs <= 0 {
		c.KafkaProducer.SendTimeoutMs = 5_000
	}
	if c.ProgressConf.RecentThresholdSec <= 0 {
		c.ProgressConf.RecentThresholdSec = 60
	}
	if c.ProgressConf.FlushIntervalMs <= 0 {
		c.ProgressConf.FlushIntervalMs = 1_000
	}
	if c.ProgressConf.Table == "" {
		c.ProgressConf.Table = "slot_progress"
	}
}

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	errs := []error{ErrValidationFailed}
	for _, fe := range fieldErrs {
		errs = append(errs, fmt.Errorf("'%s': value '%v' does not satisfy '%s'", fe.Namespace(), fe.Value(), fe.Tag()))
	}
	return errors.Join(errs...)
}
