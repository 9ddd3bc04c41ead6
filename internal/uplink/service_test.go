package uplink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgekit/uplink/internal/testutil/testlog"
)

// readFrame returns the next raw frame payload, keepalives included.
func (sc *serverConn) readFrame() []byte {
	sc.t.Helper()
	buf := make([]byte, 1500)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if payload, ok := sc.dec.Next(); ok {
			return payload
		}
		_ = sc.conn.SetReadDeadline(deadline)
		n, err := sc.conn.Read(buf)
		if n > 0 {
			sc.dec.Feed(buf[:n])
			continue
		}
		if err != nil {
			sc.t.Fatalf("read from client: %v", err)
		}
	}
}

func writeDeviceConfig(t *testing.T, host string, port int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.toml")
	content := fmt.Sprintf("clientid = \"dev-1\"\npassword = \"secret\"\nhost = %q\nport = %d\nroot = %q\n",
		host, port, t.TempDir())
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write device config: %v", err)
	}
	return path
}

func TestServiceDoValidation(t *testing.T) {
	testlog.Start(t)
	svc, err := NewService(DefaultServiceConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.Do(Action("bogus")); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}

	// nothing drains the queue while the loop is not running
	for i := 0; i < cap(svc.actions); i++ {
		if err := svc.Do(ActionPause); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := svc.Do(ActionPause); !errors.Is(err, ErrControlBusy) {
		t.Fatalf("expected ErrControlBusy, got %v", err)
	}
}

func TestServiceRunConnectsFromConfig(t *testing.T) {
	testlog.Start(t)
	srv := startServer(t)
	host, port := srv.hostPort()

	cfg := DefaultServiceConfig()
	cfg.DeviceConfigPath = writeDeviceConfig(t, host, port)
	cfg.TickInterval = 5 * time.Millisecond
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	sc := srv.accept()
	hello := sc.readMessage()
	if hello.Cmd() != "hello" {
		t.Fatalf("first message is %q", hello.Cmd())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !svc.Status().Connected {
		time.Sleep(5 * time.Millisecond)
	}
	if st := svc.Status(); !st.Connected || st.ClientID != "dev-1" {
		t.Fatalf("status: %+v", st)
	}

	if err := svc.Do(ActionPause); err != nil {
		t.Fatalf("pause: %v", err)
	}
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !svc.Status().Paused {
		time.Sleep(5 * time.Millisecond)
	}
	if !svc.Status().Paused {
		t.Fatalf("pause action not applied")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("service did not stop")
	}
}

func TestServiceRunMissingConfigStaysPaused(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultServiceConfig()
	cfg.DeviceConfigPath = filepath.Join(t.TempDir(), "absent.toml")
	cfg.TickInterval = 5 * time.Millisecond
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	if st := svc.Status(); !st.Paused || st.Connected {
		t.Fatalf("status: %+v", st)
	}

	cancel()
	<-done
}

func TestServiceKeepalive(t *testing.T) {
	testlog.Start(t)
	srv := startServer(t)
	host, port := srv.hostPort()

	cfg := DefaultServiceConfig()
	cfg.DeviceConfigPath = writeDeviceConfig(t, host, port)
	cfg.TickInterval = 5 * time.Millisecond
	cfg.KeepaliveInterval = 20 * time.Millisecond
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	sc := srv.accept()
	if hello := sc.readFrame(); len(hello) == 0 {
		t.Fatalf("hello expected before keepalives")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if payload := sc.readFrame(); len(payload) == 0 {
			cancel()
			<-done
			return
		}
	}
	t.Fatalf("no keepalive within deadline")
}
