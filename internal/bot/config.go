package bot

import (
	"time"
)

// Config holds the tunables of the Telegram transport.
type Config struct {
	// Long-poll timeout, in seconds, passed to Telegram.
	PollTimeout int
	// How long an idle study or quiz session survives before it is dropped.
	SessionTTL time.Duration
	// Number of questions per practice quiz round.
	QuizLength int
	// Upper bound on the size of uploaded import files.
	MaxImportBytes int64
}

// DefaultConfig returns the configuration used when main overrides nothing.
func DefaultConfig() *Config {
	return &Config{
		PollTimeout:    60,
		SessionTTL:     2 * time.Hour,
		QuizLength:     5,
		MaxImportBytes: 5 << 20,
	}
}
