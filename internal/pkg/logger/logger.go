package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewDefault 创建标准输出的 slog Logger。
//
// 参数:
//
//	level: 日志级别字符串 (debug / info / warn / error)，无法识别时回落到 info
func NewDefault(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
