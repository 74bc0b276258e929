package logx

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Debug        bool `split_words:"true" default:"false"`
	PrettyFormat bool `split_words:"true" default:"false"`
}

var DefaultConfig = &Config{}

// Init replaces the global zerolog logger according to conf. With no
// arguments it applies DefaultConfig (info level, JSON output).
func Init(opts ...Config) {
	conf := DefaultConfig
	if len(opts) > 0 {
		conf = &opts[0]
	}

	writer := zerolog.New(os.Stdout)
	if conf.PrettyFormat {
		writer = zerolog.New(zerolog.NewConsoleWriter())
	}
	log.Logger = writer.With().Timestamp().Logger()

	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Logger.Level(level).With().Caller().Stack().Logger()
}
