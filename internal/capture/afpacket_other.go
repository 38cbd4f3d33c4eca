//go:build !linux

package capture

import "errors"

// NewAFPacketEngine is only available on Linux.
func NewAFPacketEngine(cfg *Config) (Engine, error) {
	return nil, errors.New("afpacket: AF_PACKET capture requires Linux")
}
