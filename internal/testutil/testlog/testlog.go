// Package testlog bootstraps logging for tests.
package testlog

import (
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/edgekit/uplink/internal/observability"
)

func Start(t *testing.T) {
	t.Helper()
	observability.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("start")
}
