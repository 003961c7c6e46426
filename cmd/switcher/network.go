package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/switcher/internal/bridge"
	"github.com/muurk/switcher/internal/device"
	"github.com/muurk/switcher/internal/discovery"
	"github.com/muurk/switcher/internal/ui"
)

// Network command flags
var (
	bridgeURL  string
	serveAddr  string
	noAnnounce bool
	instance   string
)

func init() {
	discoverCmd.Flags().DurationVar(&timeout, "timeout", 0, "How long to listen (default from config)")
	addTargetFlags(watchCmd)
	watchCmd.Flags().StringVar(&bridgeURL, "bridge", "", "Subscribe to a bridge (ws:// URL, host:port, or \"mdns\" to find one) instead of listening locally")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, \":8765\")")
	serveCmd.Flags().BoolVar(&noAnnounce, "no-announce", false, "Do not advertise the bridge over mDNS")
	serveCmd.Flags().StringVar(&instance, "name", "", "mDNS instance name (default: hostname)")

	rootCmd.AddCommand(discoverCmd, listenCmd, watchCmd, serveCmd)
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan for Switcher devices on the network",
	Long: `Listen for device broadcasts and list every device heard.

Devices announce themselves on UDP ports 20002, 20003, 10002 and 10003.
Every device found is remembered so later commands can address it by
name.`,
	Example: `  # Scan for 10 seconds (default)
  switcher discover

  # Quick 3-second scan
  switcher discover --timeout 3s --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d := discoverTimeout()
		p := printer(cmd)
		if !jsonOutput {
			p.PleaseWait("Listening for device broadcasts", "up to "+d.String())
		}

		devices, err := discovery.NewDispatcher().Scan(cmd.Context(), d)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		remember(devices...)

		if jsonOutput {
			return printJSON(cmd, devices)
		}
		if len(devices) == 0 {
			p.Warning("No devices found")
			p.Println("Troubleshooting:")
			p.Println("  - Ensure the devices are powered on and on this network")
			p.Println("  - Allow inbound UDP on ports 20002, 20003, 10002 and 10003")
			p.Println("  - Stop other programs that bind these ports (Home Assistant, another switcher serve)")
			return nil
		}
		rows := make([]ui.DeviceRow, 0, len(devices))
		for _, desc := range devices {
			rows = append(rows, ui.RowFromDescriptor(desc))
		}
		p.Printf("Found %d device(s):\n\n", len(devices))
		p.Devices(rows)
		return nil
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen [device]",
	Short: "Print device beacons as they arrive",
	Long: `Print every beacon, optionally only those of one device, until
interrupted. With --json each message is printed as one JSON line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := discovery.Filter{}
		if len(args) == 1 {
			filter = discovery.Key(args[0])
		}
		msgs, err := discovery.NewDispatcher().Listen(cmd.Context(), filter)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		p := printer(cmd)
		for msg := range msgs {
			if jsonOutput {
				if err := enc.Encode(msg); err != nil {
					return err
				}
				continue
			}
			line := msg.String()
			if msg.Beacon != nil {
				if state := ui.Summary(ui.BeaconStatus(msg.Beacon)); state != "" {
					line += "  " + state
				}
			}
			p.Printf("%s  %s\n", msg.ReceivedAt.Format("15:04:05"), line)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [device]",
	Short: "Live dashboard of every device, or the status of one",
	Long: `Show one live row per device, redrawn as beacons arrive.

By default the broadcast ports are bound locally. With --bridge the rows
come from a 'switcher serve' bridge instead, which works from another
machine or while the bridge holds the ports.

Given a device, print one status line each time that device broadcasts
instead of drawing the dashboard. With --json each status is printed as
one JSON line.`,
	Example: `  switcher watch
  switcher watch --bridge mdns
  switcher watch --bridge 192.168.1.5:8765
  switcher watch boiler --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 || deviceID != "" || deviceIP != "" {
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return watchDevice(cmd, key)
		}
		if !ui.IsTerminal() {
			return errors.New("watch needs a terminal; use 'switcher listen --json' for piped output")
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		title := "Switcher Devices"
		var (
			source <-chan discovery.Message
			err    error
		)
		if bridgeURL == "" {
			source, err = discovery.NewDispatcher().Listen(ctx, discovery.Filter{})
		} else {
			var url string
			url, err = resolveBridge(ctx, bridgeURL)
			if err == nil {
				title += " via " + url
				source, err = bridge.Dial(ctx, url)
			}
		}
		if err != nil {
			return err
		}
		return ui.RunWatch(title, source)
	},
}

// watchDevice prints the status events of one device until interrupted
func watchDevice(cmd *cobra.Command, key string) error {
	c, err := openDevice(cmd, key)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var msgs <-chan discovery.Message
	if bridgeURL == "" {
		msgs, err = discovery.NewDispatcher().Listen(ctx, discovery.Filter{ID: c.Descriptor().ID.String()})
	} else {
		var url string
		if url, err = resolveBridge(ctx, bridgeURL); err == nil {
			msgs, err = bridge.Dial(ctx, url)
		}
	}
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Watch(ctx, msgs)
	}()
	return printEvents(cmd, c.Events(), done)
}

// printEvents writes controller events until stop is closed
func printEvents(cmd *cobra.Command, events <-chan device.Event, stop <-chan struct{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	p := printer(cmd)
	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if jsonOutput {
				if err := enc.Encode(eventJSON{Kind: ev.Kind().String(), Event: ev}); err != nil {
					return err
				}
				continue
			}
			p.Printf("%s  %s\n", time.Now().Format("15:04:05"), ev)
		}
	}
}

// eventJSON is the line format of watched events
type eventJSON struct {
	Kind  string       `json:"kind"`
	Event device.Event `json:"event"`
}

// resolveBridge turns the --bridge value into a WebSocket URL
func resolveBridge(ctx context.Context, value string) (string, error) {
	switch {
	case value == "mdns":
		bridges, err := bridge.Browse(ctx, bridge.DefaultBrowseTimeout)
		if err != nil {
			return "", err
		}
		if len(bridges) == 0 {
			return "", errors.New("no bridge answered over mDNS")
		}
		return bridges[0].URL(), nil
	case strings.HasPrefix(value, "ws://") || strings.HasPrefix(value, "wss://"):
		return value, nil
	default:
		host, port, err := net.SplitHostPort(value)
		if err != nil {
			return bridge.URL(value, bridge.DefaultPort), nil
		}
		n, err := strconv.Atoi(port)
		if err != nil {
			return "", fmt.Errorf("invalid bridge port %q", port)
		}
		return bridge.URL(host, n), nil
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Relay device beacons to WebSocket subscribers",
	Long: `Bind the broadcast ports and republish every beacon as JSON.

Subscribers connect to ws://<host>:<port>/ws and first receive the last
beacon of every device seen. GET /devices returns the same snapshot. The
bridge is advertised over mDNS as a _switcher._tcp service.`,
	Example: `  switcher serve
  switcher serve --addr 127.0.0.1:9000 --no-announce`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bridgeConfig()
		if err != nil {
			return err
		}

		d := discovery.NewDispatcher()
		defer d.Close()
		srv, msgs, err := startBridge(cmd.Context(), cfg, d)
		if err != nil {
			return err
		}

		p := printer(cmd)
		p.Header("Switcher Bridge", cmd.CommandPath(),
			ui.D("WebSocket", "ws://"+srv.Addr()+bridge.WebSocketPath),
			ui.D("Snapshot", "http://"+srv.Addr()+"/devices"),
			ui.D("mDNS", cfg.Announce),
		)
		return srv.Serve(cmd.Context(), msgs)
	},
}

// beaconSource is the part of the discovery dispatcher the bridge needs
type beaconSource interface {
	Listen(ctx context.Context, filter discovery.Filter) (<-chan discovery.Message, error)
}

// startBridge binds the bridge port, then the broadcast ports. Nothing
// stays bound when either fails.
func startBridge(ctx context.Context, cfg *bridge.Config, src beaconSource) (*bridge.Server, <-chan discovery.Message, error) {
	srv := bridge.New(cfg)
	if err := srv.Listen(); err != nil {
		return nil, nil, err
	}
	msgs, err := src.Listen(ctx, discovery.Filter{})
	if err != nil {
		_ = srv.Close()
		return nil, nil, err
	}
	return srv, msgs, nil
}

func bridgeConfig() (*bridge.Config, error) {
	addr := serveAddr
	announce := !noAnnounce
	if prefs := registry.Preferences; prefs != nil {
		if addr == "" {
			addr = prefs.BridgeAddr
		}
		announce = announce && prefs.AnnounceBridge
	}
	if addr == "" {
		addr = net.JoinHostPort("", strconv.Itoa(bridge.DefaultPort))
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid listen port %q", port)
	}
	return &bridge.Config{Host: host, Port: n, Announce: announce, Instance: instance}, nil
}
