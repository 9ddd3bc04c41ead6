// Package telemetry provides the platform collaborators consumed by the
// uplink command handlers: clock synchronization and the platform state
// reported by net_metrics_query/system_query. These are plain request/response
// providers with no protocol logic of their own.
package telemetry

import (
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Clock receives server-supplied wall clock time.
type Clock interface {
	SetTime(t time.Time) error
}

// OffsetClock is the default Clock. A regular process cannot set the system
// RTC, so it records the server/local offset and makes it queryable instead.
type OffsetClock struct {
	offset time.Duration
	synced bool
}

func (c *OffsetClock) SetTime(t time.Time) error {
	c.offset = time.Until(t)
	c.synced = true
	log.Info().Dur("offset", c.offset).Msg("uplink: clock sync")
	return nil
}

// Offset returns the last observed server/local clock offset.
func (c *OffsetClock) Offset() (time.Duration, bool) {
	return c.offset, c.synced
}

// Provider supplies platform fields for telemetry replies. Keys are merged
// into the reply document as-is.
type Provider interface {
	NetMetrics() map[string]any
	SystemInfo() map[string]any
}

// RuntimeProvider reports Go runtime and host facts. The boot id is generated
// once per process so the server can tell restarts apart.
type RuntimeProvider struct {
	bootID  string
	started time.Time
}

func NewRuntimeProvider() *RuntimeProvider {
	return &RuntimeProvider{
		bootID:  uuid.NewString(),
		started: time.Now(),
	}
}

func (p *RuntimeProvider) BootID() string { return p.bootID }

func (p *RuntimeProvider) NetMetrics() map[string]any {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return map[string]any{
		"go_mem_heap_alloc": ms.HeapAlloc,
		"go_mem_heap_sys":   ms.HeapSys,
		"go_mem_heap_inuse": ms.HeapInuse,
		"go_num_gc":         ms.NumGC,
		"go_goroutines":     runtime.NumGoroutine(),
	}
}

func (p *RuntimeProvider) SystemInfo() map[string]any {
	hostname, _ := os.Hostname()
	return map[string]any{
		"boot_id":        p.bootID,
		"hostname":       hostname,
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"go_version":     runtime.Version(),
		"num_cpu":        runtime.NumCPU(),
		"pid":            os.Getpid(),
		"uptime_seconds": int64(time.Since(p.started).Seconds()),
	}
}
