package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/switcher/internal/discovery"
	"github.com/muurk/switcher/internal/logging"
	"github.com/muurk/switcher/internal/version"
)

// URL returns the WebSocket address of a bridge
func URL(host string, port int) string {
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, strconv.Itoa(port)), Path: WebSocketPath}
	return u.String()
}

// Dial subscribes to a bridge. The channel delivers the device snapshot
// followed by live messages, and is closed when ctx is cancelled or the
// bridge goes away.
func Dial(ctx context.Context, rawURL string) (<-chan discovery.Message, error) {
	dialer := websocket.Dialer{HandshakeTimeout: writeWait}
	header := http.Header{"User-Agent": []string{version.UserAgent()}}

	conn, _, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bridge %s: %w", rawURL, err)
	}
	logging.LogConnection(rawURL, "websocket_connected")

	out := make(chan discovery.Message, sendBuffer)
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					logging.Info("Bridge connection closed",
						zap.String("url", rawURL),
						zap.Error(err),
					)
				}
				return
			}
			logging.LogWebSocketMessage(rawURL, "received", messageType, data)

			var msg discovery.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				logging.Warn("Dropping undecodable bridge message", zap.Error(err))
				logging.LogRawBytes("Bridge message", data)
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// FetchDevices reads the device snapshot of a bridge over plain HTTP. base
// is the bridge address, either host:port or an http URL.
func FetchDevices(ctx context.Context, base string) ([]discovery.Message, error) {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		u = &url.URL{Scheme: "http", Host: base}
	}
	u.Scheme = "http"
	u.Path = "/devices"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query bridge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge returned %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read bridge response: %w", err)
	}
	return decodeDevices(data)
}
