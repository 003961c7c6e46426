// Package logging provides structured logging for the switcher tools.
//
// It wraps a global zap logger that stays silent until Initialize is
// called with a level, so CLI output is never mixed with log lines unless
// asked for. Output goes to stderr.
//
// # Levels
//
//   - debug: packet hex dumps, every beacon, WebSocket frames
//   - info: connections, logins, bridge lifecycle
//   - warn: dropped events, slow subscribers, unresolvable IR commands
//   - error: socket and login failures
//
// The level comes from the --log-level flag, then SWITCHER_LOG_LEVEL, then
// the log_level preference of the config file.
//
// # Protocol Helpers
//
//	logging.LogConnection("192.168.1.20:9957", "connected")
//	logging.LogPacket("sent", addr, packet)
//	logging.LogBeacon("192.168.1.20", 20002, datagram, true)
//
// LogPacket and LogWebSocketMessage do no work unless debug is enabled.
package logging
