package config

import "time"

type Config struct {
	Service  *ServiceConfig  `yaml:"service"`
	Logger   *LoggerConfig   `yaml:"logger"`
	Tracer   *TracerConfig   `yaml:"tracer"`
	Redis    *RedisConfig    `yaml:"redis"`
	Postgres *PostgresConfig `yaml:"postgres"`
	Auth     *AuthConfig     `yaml:"auth"`
	Realtime *RealtimeConfig `yaml:"realtime"`
}

type ServiceConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
	Add  string `yaml:"addr"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// RedisConfig is optional. An empty URL disables the presence mirror.
type RedisConfig struct {
	URL           string        `yaml:"url"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	PoolSize      int           `yaml:"pool_size"`
	MinIdleConns  int           `yaml:"min_idle_conns"`
	PingTimeout   time.Duration `yaml:"ping_timeout"`
	PresenceKey   string        `yaml:"presence_key"`
	MirrorTimeout time.Duration `yaml:"mirror_timeout"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	PingTimeout     time.Duration `yaml:"ping_timeout"`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// RealtimeConfig tunes the websocket transport, the presence broadcaster
// and the stale connection sweeper.
type RealtimeConfig struct {
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongWait       time.Duration `yaml:"pong_wait"`
	WriteWait      time.Duration `yaml:"write_wait"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	OutboxSize     int           `yaml:"outbox_size"`
	ReadLimit      int           `yaml:"read_limit"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}
