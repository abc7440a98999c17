// Package netutil provides small networking helpers for server startup.
package netutil

import (
	"fmt"
	"net"
)

// FindFreePort scans ascending from start and returns the first TCP port that
// can be bound, checking at most maxAttempts ports. It returns an error when
// the whole range is busy.
func FindFreePort(start, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := start + i
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			continue
		}
		_ = ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", start, start+maxAttempts)
}
