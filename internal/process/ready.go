package process

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

type ReadyStats struct {
	Attempts int
	Elapsed  time.Duration
}

// WaitForTCPPort dials host:port until it accepts a connection or attempts
// run out.
func WaitForTCPPort(ctx context.Context, host string, port int, attempts int, connectTimeout time.Duration, retryDelay time.Duration) (ReadyStats, error) {
	started := time.Now()
	stats := ReadyStats{}
	address := net.JoinHostPort(host, strconv.Itoa(port))
	var lastErr error

	for i := 0; i < attempts; i++ {
		stats.Attempts = i + 1
		d := net.Dialer{Timeout: connectTimeout}
		conn, err := d.DialContext(ctx, "tcp", address)
		if err == nil {
			_ = conn.Close()
			stats.Elapsed = time.Since(started)
			return stats, nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			stats.Elapsed = time.Since(started)
			return stats, fmt.Errorf("%s readiness canceled after %d attempts in %s: %w", address, stats.Attempts, stats.Elapsed.Truncate(time.Millisecond), ctx.Err())
		case <-time.After(retryDelay):
		}
	}

	stats.Elapsed = time.Since(started)
	return stats, fmt.Errorf("%s not reachable after %d attempts in %s: %w", address, attempts, stats.Elapsed.Truncate(time.Millisecond), lastErr)
}
