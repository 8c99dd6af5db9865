package main

import "time"

type Config struct {
	Host      string `env:"HOST,default=localhost"`
	Port      int    `env:"PORT,default=8080"`
	JWTSecret string `env:"JWT_SECRET,required=true"`

	SendQueueSize  int           `env:"SEND_QUEUE_SIZE,default=256"`
	EdgeBufferSize int           `env:"EDGE_BUFFER_SIZE,default=1024"`
	WriteWait      time.Duration `env:"WRITE_WAIT,default=10s"`
	PongWait       time.Duration `env:"PONG_WAIT,default=60s"`
	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE,default=1048576"`

	StoreTimeout      time.Duration `env:"STORE_TIMEOUT,default=5s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	LimitMessages     *int          `env:"LIMIT_MESSAGES"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
}
