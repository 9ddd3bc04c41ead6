package observability

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func InitLogger(app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

var testsOnce sync.Once

// ConfigureTests silences the global logger so test output stays readable.
// Set UPLINK_TEST_LOG=1 to see log lines while debugging a test.
func ConfigureTests() {
	testsOnce.Do(func() {
		if os.Getenv("UPLINK_TEST_LOG") != "" {
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			return
		}
		log.Logger = zerolog.New(io.Discard)
	})
}
