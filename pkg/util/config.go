package util

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

type JoinCache struct {
	// fractions of the vector capacity. a probe result smaller than
	// low*cap goes into the cache chunk; the cache is flushed once it
	// reaches high*cap.
	LowWatermark  float64 `toml:"lowWatermark"`
	HighWatermark float64 `toml:"highWatermark"`
}

type DebugOptions struct {
	PrintChunk bool `toml:"printChunk"`
	PrintPlan  bool `toml:"printPlan"`
}

type Config struct {
	JoinCache JoinCache    `toml:"joinCache"`
	Debug     DebugOptions `toml:"debug"`
}

func DefaultConfig() *Config {
	return &Config{
		JoinCache: JoinCache{
			LowWatermark:  1.0 / 32,
			HighWatermark: 1 - 1.0/32,
		},
	}
}

func LoadConfig(fpath string) (*Config, error) {
	conf := DefaultConfig()
	if _, err := toml.DecodeFile(fpath, conf); err != nil {
		return nil, err
	}
	if conf.JoinCache.LowWatermark <= 0 {
		conf.JoinCache.LowWatermark = 1.0 / 32
	}
	if conf.JoinCache.HighWatermark <= 0 ||
		conf.JoinCache.HighWatermark > 1 {
		conf.JoinCache.HighWatermark = 1 - 1.0/32
	}
	//a flush threshold plus a full sub-low batch must fit the cache
	if conf.JoinCache.LowWatermark+conf.JoinCache.HighWatermark > 1 {
		return nil, fmt.Errorf(
			"joinCache lowWatermark %v + highWatermark %v exceeds 1",
			conf.JoinCache.LowWatermark,
			conf.JoinCache.HighWatermark,
		)
	}
	return conf, nil
}
