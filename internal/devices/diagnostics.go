package devices

import (
	"context"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// pinger runs ICMP reachability probes against device hosts. It answers the
// narrower question "is the box up at all" when the API handshake fails.
type pinger struct {
	timeout time.Duration
	count   int
	logger  *zap.Logger
}

func newPinger(cfg DevicesConfig, logger *zap.Logger) *pinger {
	return &pinger{timeout: cfg.PingTimeout, count: cfg.PingCount, logger: logger}
}

// ping probes the host and reports packet loss and average RTT.
func (p *pinger) ping(ctx context.Context, host string) (*PingResult, error) {
	pr, err := probing.NewPinger(host)
	if err != nil {
		return nil, err
	}

	pr.Count = p.count
	pr.Timeout = p.timeout
	pr.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := pr.Run(); runErr != nil {
			p.logger.Debug("ping failed", zap.String("host", host), zap.Error(runErr))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pr.Stop()
		return nil, ctx.Err()
	}

	stats := pr.Statistics()
	return &PingResult{
		Reachable:  stats.PacketsRecv > 0,
		PacketLoss: stats.PacketLoss,
		AvgRTT:     stats.AvgRtt,
	}, nil
}
