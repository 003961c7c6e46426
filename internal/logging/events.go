package logging

import (
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Dumps are cut after this many bytes
const maxDump = 256

// LogConnection logs a TCP or WebSocket connection event such as
// "connected", "dropped" or "closed".
func LogConnection(remoteAddr string, event string) {
	Info("Connection event",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// LogPacket logs one protocol packet exchanged with a device. The command
// code is read from the header; the hex dump is attached at debug level.
func LogPacket(direction string, remoteAddr string, data []byte) {
	if !enabled(zapcore.DebugLevel) {
		return
	}
	fields := []zap.Field{
		zap.String("remote_addr", remoteAddr),
		zap.String("direction", direction),
		zap.Int("length", len(data)),
	}
	if len(data) >= 8 {
		fields = append(fields, zap.String("command", hex.EncodeToString(data[6:8])))
	}
	fields = append(fields, zap.String("hex_dump", hexDump(data)))
	Debug("Packet", fields...)
}

// LogBeacon logs a broadcast datagram received on a discovery port
func LogBeacon(sourceAddr string, port int, data []byte, valid bool) {
	Debug("Beacon received",
		zap.String("source_addr", sourceAddr),
		zap.Int("port", port),
		zap.Int("length", len(data)),
		zap.Bool("valid", valid),
	)
}

// LogHTTPRequest logs a request to the bridge
func LogHTTPRequest(remoteAddr string, method string, path string, headers map[string]string) {
	Info("HTTP request received",
		zap.String("remote_addr", remoteAddr),
		zap.String("method", method),
		zap.String("path", path),
		zap.Any("headers", headers),
	)
}

// LogHTTPResponse logs a bridge response
func LogHTTPResponse(remoteAddr string, statusCode int, headers map[string]string) {
	Info("HTTP response sent",
		zap.String("remote_addr", remoteAddr),
		zap.Int("status_code", statusCode),
		zap.Any("headers", headers),
	)
}

// WebSocket frame opcodes (RFC 6455)
var frameNames = map[int]string{
	1:  "text",
	2:  "binary",
	8:  "close",
	9:  "ping",
	10: "pong",
}

// LogWebSocketMessage logs a frame relayed by or to the bridge. Text
// frames carry JSON and are logged as is.
func LogWebSocketMessage(remoteAddr string, direction string, messageType int, data []byte) {
	if !enabled(zapcore.DebugLevel) {
		return
	}
	name, ok := frameNames[messageType]
	if !ok {
		name = fmt.Sprintf("unknown(%d)", messageType)
	}
	fields := []zap.Field{
		zap.String("remote_addr", remoteAddr),
		zap.String("direction", direction),
		zap.String("message_type", name),
		zap.Int("length", len(data)),
	}
	if messageType == 1 {
		fields = append(fields, zap.ByteString("content", data))
	} else {
		fields = append(fields, zap.String("hex_dump", hexDump(data)))
	}
	Debug("WebSocket message", fields...)
}

// LogRawBytes logs data that could not be decoded
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

func hexDump(data []byte) string {
	if len(data) > maxDump {
		return hex.EncodeToString(data[:maxDump]) + "..."
	}
	return hex.EncodeToString(data)
}

// asciiDump renders printable bytes and replaces the rest with '.'
func asciiDump(data []byte) string {
	if len(data) > maxDump {
		data = data[:maxDump]
	}
	out := make([]byte, len(data))
	for i, b := range data {
		if b < 0x20 || b > 0x7e {
			b = '.'
		}
		out[i] = b
	}
	return string(out)
}
