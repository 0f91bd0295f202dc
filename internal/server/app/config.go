package app

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddr string `toml:"listenAddr"`
	// DBDriver 取值 memory、sqlite 或 duckdb。
	DBDriver string `toml:"dbDriver"`
	DBPath   string `toml:"dbPath"`
	// MemoryCapacity 只对 memory 后端生效。
	MemoryCapacity int      `toml:"memoryCapacity"`
	AdminTokens    []string `toml:"adminTokens"`
	// RetentionDays 大于 0 时定期清理更早的记录（memory 后端忽略）。
	RetentionDays int           `toml:"retentionDays"`
	TunnelTTL     time.Duration `toml:"-"`
	TunnelTTLRaw  string        `toml:"tunnelTTL"`
	LogLevel      string        `toml:"logLevel"`
}

// LoadConfig 读取 TOML 配置文件；path 为空时返回零值配置。
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("读取配置文件 %s 失败：%w", path, err)
	}
	if cfg.TunnelTTLRaw != "" {
		d, err := time.ParseDuration(cfg.TunnelTTLRaw)
		if err != nil {
			return cfg, fmt.Errorf("tunnelTTL 非法：%w", err)
		}
		cfg.TunnelTTL = d
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.DBDriver == "" {
		c.DBDriver = "memory"
	}
}
