// 包 config: 注记索引的环境配置；宿主可通过 .env 文件或进程环境变量注入
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config: 索引的可调参数
type Config struct {
	// 点注记缺省符号名，符号为空串的点注记回退到该值
	DefaultSymbol string `env:"ANNO_DEFAULT_SYMBOL"`
	// 失效提示工作协程数
	NotifyWorkers int `env:"ANNO_NOTIFY_WORKERS" envDefault:"1"`
	// 失效提示合并窗口（毫秒）；0 表示立即投递
	NotifyDebounceMs int `env:"ANNO_NOTIFY_DEBOUNCE_MS" envDefault:"0"`
}

// Load: 先加载工作目录下的 .env（缺失忽略），再按结构标签解析环境变量
func Load() (Config, error) {
	_ = godotenv.Load(".env")
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}
