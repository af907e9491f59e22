package realtime

import "github.com/gorilla/websocket"

// SetDialer swaps the websocket dialer, letting tests script connections
// that fail after the handshake.
func SetDialer(m *Manager, d *websocket.Dialer) { m.dialer = d }
