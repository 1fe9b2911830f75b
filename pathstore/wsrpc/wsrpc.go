// Package wsrpc carries synchronization envelopes over websocket
// connections. Frames are binary: a non-empty frame holds exactly one
// envelope, an empty frame is a keepalive and is never answered.
package wsrpc

import "time"

// Settings bounds the timing of websocket I/O on both ends of a
// connection. A zero PingTimeout disables the client keepalive loop.
type Settings struct {
	WsHandshakeTimeout time.Duration
	PingTimeout        time.Duration
	WriteTimeout       time.Duration
	ReadTimeout        time.Duration
}

// DefaultSettings returns timeouts suited to a same-host or LAN peer.
// The keepalive interval stays well under ReadTimeout so an idle but
// healthy connection is never dropped by the peer.
func DefaultSettings() *Settings {
	return &Settings{
		WsHandshakeTimeout: 2 * time.Second,
		PingTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReadTimeout:        30 * time.Second,
	}
}
