// 包 logger: 统一初始化与获取日志器，避免各包重复配置；级别与格式由环境变量控制
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// 进程级复用的默认日志器，避免多处初始化导致输出不一致
var defaultLogger *slog.Logger

// Setup: 初始化默认日志器
// 背景：集中化日志配置，便于按环境统一调整级别与格式
// 约束：输出目标固定为标准错误；索引操作只在临界区之外记日志
func Setup() *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	var h slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	defaultLogger = slog.New(h)
	return defaultLogger
}

// L: 获取默认日志器；未初始化时回退到 Setup
func L() *slog.Logger {
	if defaultLogger == nil {
		return Setup()
	}
	return defaultLogger
}

// With: 派生带组件标记的日志器，供各包在入口处获取一次后复用
func With(component string) *slog.Logger {
	return L().With("component", component)
}
