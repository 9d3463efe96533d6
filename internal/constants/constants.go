package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixGroupConfig = "groupcfg:"
)

const (
	DefaultInputTopic        = "chat_events"
	DefaultOutputTopic       = "moderation_actions"
	DefaultConfigUpdateTopic = "group_config_updates"
)

const (
	DefaultMongoDBName = "warden"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	DefaultTTLSeconds = 3600
)

const (
	DefaultMuteThreshold = 3
	DefaultKickThreshold = 5
	DefaultMuteDuration  = time.Hour
)

const (
	SourceTypeDatabase = "database"
	SourceTypeCache    = "cache"
)
