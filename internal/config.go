package internal

import (
	"time"

	"rentchat/runtime"
)

type Config struct {
	LogLevel   string `env:"LOG_LEVEL,default=INFO"`
	UserID     string `env:"USER_ID,required=true"`
	APIBaseURL string `env:"API_BASE_URL,required=true"`
	PushURL    string `env:"PUSH_URL,required=true"`
	APIToken   string `env:"API_TOKEN,required=true"`

	BufferSize  int           `env:"BUFFER_SIZE,default=256"`
	SinkTimeout time.Duration `env:"SINK_TIMEOUT,default=2s"`

	RoomListLiveInterval     time.Duration `env:"ROOM_LIST_LIVE_INTERVAL,default=30s"`
	RoomListDegradedInterval time.Duration `env:"ROOM_LIST_DEGRADED_INTERVAL,default=10s"`
	RoomMessagesInterval     time.Duration `env:"ROOM_MESSAGES_INTERVAL,default=3s"`
	ExpiryInterval           time.Duration `env:"EXPIRY_INTERVAL,default=5s"`

	BadgerFilepath string `env:"BADGER_FILEPATH"`
	CacheLimit     *int   `env:"CACHE_LIMIT"`

	MetricsPort int `env:"METRICS_PORT,default=0"`
}

// Intervals maps the environment cadences onto the coordinator's knobs.
func (c Config) Intervals() runtime.Intervals {
	return runtime.Intervals{
		RoomListLive:     c.RoomListLiveInterval,
		RoomListDegraded: c.RoomListDegradedInterval,
		RoomMessages:     c.RoomMessagesInterval,
		Expiry:           c.ExpiryInterval,
		SinkTimeout:      c.SinkTimeout,
	}
}
