package server

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"slaparena/room"
)

// Config 服务整体配置（YAML）
type Config struct {
	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		IdleTimeout     time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log LogConfig `yaml:"log"`

	Room RoomConfig `yaml:"room"`

	// Rooms 启动时预先创建的房间
	Rooms []RoomSpec `yaml:"rooms"`
}

// LogConfig 日志输出与滚动策略
type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"` // 同时输出到 stdout
}

// RoomConfig 所有房间共用的运行参数
type RoomConfig struct {
	TickRate         int    `yaml:"tick_rate"` // 每秒复制次数
	MaxInputsPerTick int    `yaml:"max_inputs_per_tick"`
	InputBuffer      int    `yaml:"input_buffer"`
	SendBuffer       int    `yaml:"send_buffer"`
	StateCodec       string `yaml:"state_codec"` // json | msgpack
	AutoDispose      bool   `yaml:"auto_dispose"`
	DefaultVariant   string `yaml:"default_variant"`
}

// RoomSpec 预创建房间：ID + 房间类型
type RoomSpec struct {
	ID      string `yaml:"id"`
	Variant string `yaml:"variant"`
}

// DefaultConfig 默认配置，YAML 中未出现的字段保持这里的值
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Log = LogConfig{
		File:       "app.log",
		Level:      "debug",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
	}
	cfg.Room = RoomConfig{
		TickRate:         TicksPerSecond,
		MaxInputsPerTick: 8,
		InputBuffer:      256,
		SendBuffer:       64,
		StateCodec:       "json",
		AutoDispose:      true,
		DefaultVariant:   "solo",
	}
	cfg.Rooms = []RoomSpec{{ID: "room-1", Variant: "solo"}}
	return cfg
}

// LoadConfig 读取 YAML 配置；path 为空时返回默认配置
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Room.TickRate <= 0 || c.Room.TickRate > 1000 {
		return fmt.Errorf("room.tick_rate must be in 1..1000, got %d", c.Room.TickRate)
	}
	if c.Room.InputBuffer <= 0 || c.Room.SendBuffer <= 0 {
		return fmt.Errorf("room.input_buffer and room.send_buffer must be positive")
	}
	if _, err := CodecByName(c.Room.StateCodec); err != nil {
		return fmt.Errorf("room.state_codec: %w", err)
	}
	if _, err := room.VariantByName(c.Room.DefaultVariant); err != nil {
		return fmt.Errorf("room.default_variant: %w", err)
	}
	seen := make(map[string]bool, len(c.Rooms))
	for i, spec := range c.Rooms {
		if spec.ID == "" {
			return fmt.Errorf("rooms[%d]: id is required", i)
		}
		if seen[spec.ID] {
			return fmt.Errorf("rooms[%d]: duplicate id %q", i, spec.ID)
		}
		seen[spec.ID] = true
		if _, err := room.VariantByName(spec.Variant); err != nil {
			return fmt.Errorf("rooms[%d]: %w", i, err)
		}
	}
	return nil
}

// TickInterval 由 tick_rate 换算的复制间隔
func (rc RoomConfig) TickInterval() time.Duration {
	if rc.TickRate <= 0 {
		return tickInterval
	}
	return time.Second / time.Duration(rc.TickRate)
}
