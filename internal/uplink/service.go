package uplink

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownAction = errors.New("uplink: unknown action")
	ErrControlBusy   = errors.New("uplink: control queue full")
)

// Action is a control request executed on the service loop. The client is
// single-threaded by design; actions are the only way other goroutines (the
// admin server) may touch it.
type Action string

const (
	ActionPause     Action = "pause"
	ActionRetry     Action = "retry"
	ActionReconnect Action = "reconnect"
	ActionReload    Action = "reload"
)

// ServiceConfig configures the runtime loop around one Client.
type ServiceConfig struct {
	// DeviceConfigPath is loaded at startup and on ActionReload. A missing
	// file leaves the client paused and unconfigured.
	DeviceConfigPath string
	TickInterval     time.Duration
	// KeepaliveInterval bounds outbound silence with zero-length frames.
	KeepaliveInterval time.Duration
	Client            Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		TickInterval:      50 * time.Millisecond,
		KeepaliveInterval: 30 * time.Second,
		Client:            DefaultConfig(),
	}
}

// Service drives a Client from a single goroutine: a ticker paces receive
// cycles and keepalives, a control channel serializes external actions, and a
// status snapshot is republished after every step for concurrent readers.
type Service struct {
	cfg     ServiceConfig
	client  *Client
	actions chan Action
	status  atomic.Pointer[Status]
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 50 * time.Millisecond
	}
	client, err := New(cfg.Client, Collaborators{})
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:     cfg,
		client:  client,
		actions: make(chan Action, 8),
	}
	s.publishStatus()
	return s, nil
}

// Status returns the snapshot published by the last loop step. Safe to call
// from any goroutine.
func (s *Service) Status() Status {
	return *s.status.Load()
}

// Do queues a control action for the service loop. Safe to call from any
// goroutine.
func (s *Service) Do(a Action) error {
	switch a {
	case ActionPause, ActionRetry, ActionReconnect, ActionReload:
	default:
		return ErrUnknownAction
	}
	select {
	case s.actions <- a:
		return nil
	default:
		return ErrControlBusy
	}
}

// Run executes the service loop until ctx is done. On startup the device
// config is loaded and, when valid, the client begins connecting; a missing
// config is logged and the client stays paused until a reload succeeds.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.DeviceConfigPath != "" {
		if err := s.client.Reload(s.cfg.DeviceConfigPath); err == nil {
			s.client.Retry()
		}
	}
	s.publishStatus()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("uplink: service stopping")
			s.client.Pause()
			return nil
		case a := <-s.actions:
			s.apply(a)
			s.publishStatus()
		case <-ticker.C:
			s.tick()
			s.publishStatus()
		}
	}
}

func (s *Service) tick() {
	for _, m := range s.client.Receive() {
		// messages without a recognized cmd belong to the application; the
		// standalone daemon has none, so they are only logged
		log.Debug().Interface("msg", m).Msg("uplink: unrouted message")
	}
	if s.cfg.KeepaliveInterval > 0 && s.client.Connected() &&
		time.Since(s.client.lastSend) > s.cfg.KeepaliveInterval {
		s.client.SendKeepalive()
	}
}

func (s *Service) apply(a Action) {
	log.Info().Str("action", string(a)).Msg("uplink: control action")
	switch a {
	case ActionPause:
		s.client.Pause()
	case ActionRetry:
		s.client.Retry()
	case ActionReconnect:
		s.client.Reconnect()
	case ActionReload:
		if s.cfg.DeviceConfigPath == "" {
			log.Warn().Msg("uplink: reload requested without a device config path")
			return
		}
		_ = s.client.Reload(s.cfg.DeviceConfigPath)
	}
}

func (s *Service) publishStatus() {
	st := s.client.Status()
	s.status.Store(&st)
}
