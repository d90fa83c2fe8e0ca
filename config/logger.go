// 日志构建。
//
// 按 LogConfig 组装 zap 生产配置，console 格式走开发编码器。
package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	// 输出格式: json, console
	Format string `json:"format" yaml:"format" env:"LOG_FORMAT"`
	// 输出路径: stdout, stderr 或文件路径
	OutputPath string `json:"output_path" yaml:"output_path" env:"LOG_OUTPUT_PATH"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "json",
		OutputPath: "stdout",
	}
}

func (c LogConfig) validate() error {
	if c.Level != "" {
		if _, err := zapcore.ParseLevel(strings.ToLower(c.Level)); err != nil {
			return fmt.Errorf("log.level %q is not a valid level", c.Level)
		}
	}
	switch c.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.format %q must be json or console", c.Format)
	}
	return nil
}

// NewLogger 按配置构建 zap.Logger。
// 级别无法识别时退回 info，构建失败时退回生产默认配置。
func NewLogger(cfg LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = "stdout"
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{outputPath},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
