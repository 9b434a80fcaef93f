package engine

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hapcore/hapd/internal/hap/characteristic"
	"github.com/hapcore/hapd/internal/hap/dispatch"
	"github.com/hapcore/hapd/internal/hap/securesession"
)

func startTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	db := &characteristic.Database{}
	e := New(cfg, db, &dispatch.Dispatcher{DB: db}, securesession.NoopAdapter{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = e.Serve(ctx)
		close(done)
	}()

	select {
	case <-e.Ready():
	case <-time.After(time.Second):
		t.Fatal("engine never became ready")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("engine did not shut down")
		}
	})

	return e
}

func TestEngineRespondsUnauthorizedWhenUnsecured(t *testing.T) {
	e := startTestEngine(t, Config{})

	conn, err := net.Dial("tcp", e.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /accessories HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "470")
}

func TestEngineClosesConnectionsWhenPoolFull(t *testing.T) {
	e := startTestEngine(t, Config{MaxSessions: 1})

	first, err := net.Dial("tcp", e.Addr().String())
	require.NoError(t, err)
	defer first.Close()

	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return len(e.sessions) == 1
	}, time.Second, 10*time.Millisecond)

	second, err := net.Dial("tcp", e.Addr().String())
	require.NoError(t, err)
	defer second.Close()

	buf := make([]byte, 1)
	second.SetReadDeadline(time.Now().Add(time.Second))
	_, err = second.Read(buf)
	require.Error(t, err)
}
