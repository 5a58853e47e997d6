// Package logging 配置全局 zerolog 日志器。
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/platform/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup 根据配置设置全局日志级别与输出格式，并返回根日志器。
func Setup(cfg config.LogConfig) (zerolog.Logger, error) {
	return setup(cfg, os.Stderr)
}

func setup(cfg config.LogConfig, out io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("无效的日志级别 %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}
