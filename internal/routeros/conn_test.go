package routeros

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDialPlainLogin(t *testing.T) {
	d := newFakeDevice(t)

	conn, err := Dial(context.Background(), d.config(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, StateReady, conn.State())
}

func TestDialChallengeLogin(t *testing.T) {
	d := newFakeDevice(t)
	d.challengeLogin = true

	conn, err := Dial(context.Background(), d.config(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, StateReady, conn.State())
}

func TestDialRejectedCredentials(t *testing.T) {
	d := newFakeDevice(t)
	d.rejectLogin = true

	_, err := Dial(context.Background(), d.config(), zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, IsConnectionError(err), "rejected login should be a ConnectionError, got %T", err)
}

func TestDialUnreachable(t *testing.T) {
	cfg := DeviceConfig{
		Host:     "127.0.0.1",
		Port:     1, // nothing listens here
		Username: "admin",
		Password: "x",
		Timeout:  time.Second,
	}
	_, err := Dial(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
}

func TestDialBlackholedHostFailsWithinTimeout(t *testing.T) {
	cfg := DeviceConfig{
		Host:     "192.0.2.1",
		Port:     8728,
		Username: "admin",
		Password: "x",
		Timeout:  time.Second,
	}
	// A blackholed host never answers: the dial only returns when the
	// connect deadline fires.
	blackhole := dialer(func(ctx context.Context, _, _ string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		_, err := dialWith(context.Background(), cfg, zaptest.NewLogger(t), blackhole)
		done <- err
	}()

	select {
	case err := <-done:
		elapsed := time.Since(start)
		require.Error(t, err)
		assert.True(t, IsConnectionError(err), "want ConnectionError, got %T", err)
		assert.GreaterOrEqual(t, elapsed, cfg.Timeout, "dial gave up before the configured timeout")
		assert.Less(t, elapsed, 2*cfg.Timeout, "dial overstayed the configured timeout")
	case <-time.After(5 * cfg.Timeout):
		t.Fatal("dial hung: connect deadline never fired")
	}
}

func TestSendCollectsDataRecords(t *testing.T) {
	d := newFakeDevice(t)
	d.setHandler(func(words []string) [][]string {
		require.Equal(t, "/ip/hotspot/user/print", words[0])
		return [][]string{
			{"!re", "=name=guest-1", "=profile=1hour"},
			{"!re", "=name=guest-2", "=profile=1hour"},
			{"!done"},
		}
	})

	conn, err := Dial(context.Background(), d.config(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer conn.Close()

	recs, err := conn.Send(context.Background(), command("/ip/hotspot/user/print", nil, nil))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "guest-1", recs[0].attrs["name"])
	assert.Equal(t, "guest-2", recs[1].attrs["name"])
	assert.Equal(t, StateReady, conn.State())
}

func TestSendTrapKeepsSessionReady(t *testing.T) {
	d := newFakeDevice(t)
	d.setHandler(func(words []string) [][]string {
		return [][]string{
			{"!trap", "=message=failure: already have user with this name"},
			{"!done"},
		}
	})

	conn, err := Dial(context.Background(), d.config(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Send(context.Background(), command("/ip/hotspot/user/add", map[string]string{"name": "dup"}, nil))
	require.Error(t, err)
	trap, ok := err.(*TrapError)
	require.True(t, ok, "want *TrapError, got %T", err)
	assert.Contains(t, trap.Message, "already have user")

	// A trap is a command failure, not a session failure.
	assert.Equal(t, StateReady, conn.State())
}

func TestSendFatalFaultsSession(t *testing.T) {
	d := newFakeDevice(t)
	d.setHandler(func(words []string) [][]string {
		return [][]string{{"!fatal", "session terminated"}}
	})

	conn, err := Dial(context.Background(), d.config(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Send(context.Background(), command("/system/identity/print", nil, nil))
	require.Error(t, err)
	assert.Equal(t, StateFaulted, conn.State())

	// Faulted sessions refuse further sends; no silent reconnect.
	_, err = conn.Send(context.Background(), command("/system/identity/print", nil, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
}

func TestSendContextCancellation(t *testing.T) {
	d := newFakeDevice(t)
	block := make(chan struct{})
	d.setHandler(func(words []string) [][]string {
		<-block // hold the reply until the test finishes
		return [][]string{{"!done"}}
	})
	t.Cleanup(func() { close(block) })

	conn, err := Dial(context.Background(), d.config(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = conn.Send(ctx, command("/system/identity/print", nil, nil))
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.Equal(t, StateFaulted, conn.State())
}

func TestCloseIdempotent(t *testing.T) {
	d := newFakeDevice(t)

	conn, err := Dial(context.Background(), d.config(), zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	assert.Equal(t, StateDisconnected, conn.State())
	require.NoError(t, conn.Close())

	_, err = conn.Send(context.Background(), command("/system/identity/print", nil, nil))
	require.Error(t, err)
}

func TestTimeoutClamping(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"zero gets default", 0, DefaultTimeout},
		{"below floor", 200 * time.Millisecond, MinTimeout},
		{"above ceiling", 5 * time.Minute, MaxTimeout},
		{"in range", 30 * time.Second, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DeviceConfig{Host: "h", Timeout: tt.in}.normalized()
			assert.Equal(t, tt.want, cfg.Timeout)
		})
	}
}
