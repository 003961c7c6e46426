package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/switcher/internal/breeze"
	"github.com/muurk/switcher/internal/bridge"
	"github.com/muurk/switcher/internal/config"
	"github.com/muurk/switcher/internal/device"
	"github.com/muurk/switcher/internal/discovery"
	"github.com/muurk/switcher/internal/irset"
	"github.com/muurk/switcher/internal/protocol"
	"github.com/muurk/switcher/internal/transport"
)

func TestParseShutdown(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"3600", 3600, false},
		{"1h30m", 5400, false},
		{"90s", 90, false},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseShutdown(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseShutdown(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseShutdown(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		n       int
		key     string
		values  int
		wantErr bool
	}{
		{"no key", []string{"50"}, 1, "", 1, false},
		{"key and value", []string{"living", "50"}, 1, "living", 1, false},
		{"key only", []string{"boiler"}, 0, "boiler", 0, false},
		{"nothing", nil, 0, "", 0, false},
		{"too many", []string{"a", "b", "c"}, 1, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, values, err := splitArgs(tt.args, tt.n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if key != tt.key || len(values) != tt.values {
				t.Errorf("splitArgs() = %q, %v", key, values)
			}
		})
	}
}

func TestApplyFlagsKeepsUnsetFields(t *testing.T) {
	defer func() {
		breezePower, breezeMode, breezeTemp, breezeFan, breezeSwing = "", "", 0, "", ""
		breezeTempSet = false
	}()

	current := breeze.State{Power: protocol.On, Mode: protocol.ModeHeat, Fan: protocol.FanHigh, TargetTemp: 25, Swing: protocol.On}

	breezeMode = "cool"
	breezeTemp, breezeTempSet = 22, true
	got, err := applyFlags(current)
	if err != nil {
		t.Fatalf("applyFlags() error = %v", err)
	}
	want := breeze.State{Power: protocol.On, Mode: protocol.ModeCool, Fan: protocol.FanHigh, TargetTemp: 22, Swing: protocol.On}
	if got != want {
		t.Errorf("applyFlags() = %v, want %v", got, want)
	}

	// an explicit 0 is applied, an unset flag keeps the current value
	breezeTemp = 0
	if got, _ := applyFlags(current); got.TargetTemp != 0 {
		t.Errorf("--temp 0 gave TargetTemp %d", got.TargetTemp)
	}
	breezeTempSet = false
	if got, _ := applyFlags(current); got.TargetTemp != 25 {
		t.Errorf("unset --temp gave TargetTemp %d, want 25", got.TargetTemp)
	}

	breezeFan = "turbo"
	if _, err := applyFlags(current); err == nil {
		t.Error("applyFlags() accepted an unknown fan level")
	}
}

func TestResolveBridge(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ws://10.0.0.2:9000/ws", "ws://10.0.0.2:9000/ws"},
		{"192.168.1.5:9000", "ws://192.168.1.5:9000/ws"},
		{"pi.local", "ws://pi.local:8765/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := resolveBridge(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("resolveBridge() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveBridge(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if _, err := resolveBridge(context.Background(), "host:port"); err == nil {
		t.Error("resolveBridge() accepted a non-numeric port")
	}
}

func TestBridgeConfig(t *testing.T) {
	registry = config.NewRegistry()
	defer func() {
		registry = nil
		serveAddr, noAnnounce = "", false
	}()

	cfg, err := bridgeConfig()
	if err != nil {
		t.Fatalf("bridgeConfig() error = %v", err)
	}
	if cfg.Host != "" || cfg.Port != 8765 || !cfg.Announce {
		t.Errorf("default config = %+v", cfg)
	}

	serveAddr, noAnnounce = "127.0.0.1:9000", true
	cfg, err = bridgeConfig()
	if err != nil {
		t.Fatalf("bridgeConfig() error = %v", err)
	}
	if cfg.Host != "127.0.0.1" || cfg.Port != 9000 || cfg.Announce {
		t.Errorf("flag config = %+v", cfg)
	}

	serveAddr = "nonsense"
	if _, err := bridgeConfig(); err == nil {
		t.Error("bridgeConfig() accepted an address without a port")
	}
}

func TestDecodeCapture(t *testing.T) {
	id := protocol.DeviceID{0x0a, 0x1b, 0x2c}
	frame := protocol.DefaultConfig().Frame(id, protocol.SessionToken{1, 2, 3, 4}, time.Unix(1700000000, 0))
	packet := protocol.Hex(protocol.NewPowerCommand(frame, true, 0), []byte(protocol.SharedKey))

	c := decodeCapture(packet, protocol.LayoutAuth)
	if c.Kind != "packet" || c.Error != "" {
		t.Fatalf("decodeCapture() = %+v", c)
	}
	if !c.Signed || c.Packet.DeviceID != id || c.Packet.Session != frame.Session {
		t.Errorf("packet = %v, signed = %v", c.Packet, c.Signed)
	}

	// flip the last checksum byte
	tampered := packet[:len(packet)-2] + "00"
	if tampered == packet {
		tampered = packet[:len(packet)-2] + "ff"
	}
	if c := decodeCapture(tampered, protocol.LayoutAuth); c.Signed || c.verifyErr == nil {
		t.Error("tampered packet reported as signed")
	}

	b := make([]byte, 165)
	b[0], b[1] = 0xfe, 0xf0
	copy(b[18:], id[:])
	copy(b[40:], "Boiler")
	b[75] = 0x17
	copy(b[76:], []byte{192, 168, 1, 20})
	c = decodeCapture(hex.EncodeToString(b), protocol.LayoutAuth)
	if c.Kind != "beacon" || c.Beacon == nil || c.Beacon.Name != "Boiler" {
		t.Errorf("beacon capture = %+v", c)
	}

	if c := decodeCapture("zz", protocol.LayoutAuth); c.Error == "" {
		t.Error("decodeCapture() accepted invalid hex")
	}
}

func TestParseLayout(t *testing.T) {
	for in, want := range map[string]protocol.Layout{"short": protocol.LayoutShort, "AUTH": protocol.LayoutAuth, "login": protocol.LayoutLogin} {
		got, err := parseLayout(in)
		if err != nil || got != want {
			t.Errorf("parseLayout(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := parseLayout("long"); err == nil {
		t.Error("parseLayout() accepted an unknown layout")
	}
}

func TestPrintEvents(t *testing.T) {
	status := &device.StatusEvent{
		DeviceID: protocol.DeviceID{0xaa, 0xbb, 0xcc},
		Switch:   &protocol.SwitchState{Power: protocol.On, PowerConsumption: 1200},
	}

	tests := []struct {
		name string
		json bool
		want string
	}{
		{"text", false, "consumption=1200W"},
		{"json", true, `"kind":"status"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jsonOutput = tt.json
			defer func() { jsonOutput = false }()

			var out bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&out)

			events := make(chan device.Event, 1)
			events <- status
			close(events)
			if err := printEvents(cmd, events, make(chan struct{})); err != nil {
				t.Fatalf("printEvents() error = %v", err)
			}
			if got := out.String(); !strings.Contains(got, tt.want) {
				t.Errorf("output = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestCheckMode(t *testing.T) {
	caps := breeze.NewCapabilitySet("ELEC7022", []breeze.Wave{
		{Key: "off", Para: "p", HexCode: "h"},
		{Key: "ar24_f1", Para: "p", HexCode: "h"},
	}, false, false)

	tests := []struct {
		name    string
		target  breeze.State
		wantErr bool
	}{
		{"supported mode", breeze.State{Power: protocol.On, Mode: protocol.ModeCool}, false},
		{"unsupported mode", breeze.State{Power: protocol.On, Mode: protocol.ModeHeat}, true},
		{"power off ignores mode", breeze.State{Power: protocol.Off, Mode: protocol.ModeHeat}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := checkMode(tt.target, caps); (err != nil) != tt.wantErr {
				t.Errorf("checkMode() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeviceParams(t *testing.T) {
	tests := []struct {
		family protocol.Family
		want   string
	}{
		{protocol.V4, "UDP 20002, 10002"},
		{protocol.Runner, "UDP 20003, 10003"},
	}
	for _, tt := range tests {
		t.Run(tt.family.String(), func(t *testing.T) {
			desc := protocol.Descriptor{ID: protocol.DeviceID{0xaa, 0xbb, 0xcc}, IP: "192.0.2.10", Family: tt.family}
			params := deviceParams(desc)
			last := params[len(params)-1]
			if last.Key != "Beacons" || last.Value != tt.want {
				t.Errorf("deviceParams() last = %+v, want Beacons %q", last, tt.want)
			}
		})
	}
}

func TestImportIRSet(t *testing.T) {
	src := filepath.Join(t.TempDir(), "export.json")
	doc := `{"IRSetID": "ELEC7022", "OnOffType": "1", "IRWaveList": [
		{"Key": "off", "Para": "p0", "HexCode": "00"},
		{"Key": "on_ar24_f1", "Para": "p1", "HexCode": "01"}
	]}`
	if err := os.WriteFile(src, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	store := irset.NewStore(filepath.Join(t.TempDir(), "irsets"))
	set, err := importIRSet(store, src)
	if err != nil {
		t.Fatalf("importIRSet() error = %v", err)
	}
	if set.RemoteID != "ELEC7022" || !set.OnOffType {
		t.Errorf("set = %+v", set)
	}

	ids, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "ELEC7022" {
		t.Errorf("List() = %v, want [ELEC7022]", ids)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"IRWaveList": []}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := importIRSet(store, bad); err == nil {
		t.Error("importIRSet(no IRSetID) = nil error")
	}
}

func TestFailureHints(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"timeout", &transport.ConnectionError{Type: transport.ErrTypeTimeout, Retryable: true}, true},
		{"refused", &transport.ConnectionError{Type: transport.ErrTypeConnectionRefused}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hints := failureHints(tt.err)
			got := len(hints) > 0 && strings.Contains(hints[len(hints)-1], "transient")
			if got != tt.transient {
				t.Errorf("failureHints() = %v, transient hint %v, want %v", hints, got, tt.transient)
			}
		})
	}
}

type sourceFunc func(ctx context.Context, filter discovery.Filter) (<-chan discovery.Message, error)

func (f sourceFunc) Listen(ctx context.Context, filter discovery.Filter) (<-chan discovery.Message, error) {
	return f(ctx, filter)
}

func TestStartBridgeReleasesPortOnFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := &bridge.Config{Host: "127.0.0.1", Port: port}
	busy := sourceFunc(func(context.Context, discovery.Filter) (<-chan discovery.Message, error) {
		return nil, errors.New("address already in use")
	})
	if _, _, err := startBridge(context.Background(), cfg, busy); err == nil {
		t.Fatal("startBridge() = nil error")
	}

	ln, err = net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("bridge port still bound after failure: %v", err)
	}
	ln.Close()
}
