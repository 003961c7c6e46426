package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/switcher/internal/device"
	"github.com/muurk/switcher/internal/discovery"
	"github.com/muurk/switcher/internal/logging"
	"github.com/muurk/switcher/internal/protocol"
	"github.com/muurk/switcher/internal/ui"
)

// Device addressing flags
var (
	deviceID     string
	deviceIP     string
	deviceFamily string
	timeout      time.Duration
)

// addTargetFlags registers the flags that select a device
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&deviceID, "id", "", "Device id (6 hex digits)")
	cmd.Flags().StringVar(&deviceIP, "ip", "", "Device IP address")
	cmd.Flags().StringVar(&deviceFamily, "family", "", "Device family (skips discovery together with --id and --ip)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "How long to wait for the device beacon (default from config)")
}

func discoverTimeout() time.Duration {
	if timeout > 0 {
		return timeout
	}
	return registry.DiscoverTimeout()
}

// resolveDevice finds the descriptor of the device a command addresses.
// With --id, --ip and --family nothing is looked up. Otherwise key (an
// id, name, nickname or IP) is looked up in the registry, and failing
// that the network is searched for a matching beacon.
func resolveDevice(ctx context.Context, key string) (protocol.Descriptor, error) {
	if deviceID != "" && deviceIP != "" && deviceFamily != "" {
		id, err := protocol.ParseDeviceID(deviceID)
		if err != nil {
			return protocol.Descriptor{}, err
		}
		family, err := protocol.ParseFamily(deviceFamily)
		if err != nil {
			return protocol.Descriptor{}, err
		}
		return protocol.Descriptor{ID: id, IP: deviceIP, Family: family}, nil
	}

	filter := discovery.Filter{ID: deviceID, IP: deviceIP}
	if key != "" {
		if desc, err := registry.Descriptor(key); err == nil && deviceIP == "" {
			return withFamily(desc)
		}
		filter = discovery.Key(key)
	}
	if filter.IsZero() {
		return protocol.Descriptor{}, errors.New("no device given: pass a name, id or IP, or use --id/--ip")
	}

	logging.Debug("Searching for device", zap.String("filter", filter.String()))
	desc, err := discovery.NewDispatcher().Discover(ctx, filter, discoverTimeout())
	if err != nil {
		return protocol.Descriptor{}, err
	}
	remember(*desc)
	return withFamily(*desc)
}

// withFamily applies --family to a descriptor
func withFamily(desc protocol.Descriptor) (protocol.Descriptor, error) {
	if deviceFamily == "" {
		return desc, nil
	}
	family, err := protocol.ParseFamily(deviceFamily)
	if err != nil {
		return desc, err
	}
	desc.Family = family
	return desc, nil
}

// remember records devices in the registry when the preference allows it
func remember(descs ...protocol.Descriptor) {
	if registry.Preferences != nil && !registry.Preferences.RememberDevices {
		return
	}
	for _, desc := range descs {
		registry.Remember(desc)
	}
	if err := registry.Save(); err != nil {
		logging.Warn("Failed to save device registry", zap.Error(err))
	}
}

// splitArgs separates the optional leading device key from n trailing
// values
func splitArgs(args []string, n int) (string, []string, error) {
	switch len(args) {
	case n:
		return "", args, nil
	case n + 1:
		return args[0], args[1:], nil
	default:
		return "", nil, fmt.Errorf("expected %d or %d arguments, got %d", n, n+1, len(args))
	}
}

// openDevice resolves the device named by key and returns a controller for
// it. The caller must Close it.
func openDevice(cmd *cobra.Command, key string) (*device.Controller, error) {
	desc, err := resolveDevice(cmd.Context(), key)
	if err != nil {
		return nil, err
	}

	opts := []device.Option{}
	if store, err := irsetStore(); err == nil {
		opts = append(opts, device.WithCapabilityProvider(store))
	}
	return device.New(desc, opts...), nil
}

// printer returns the styled output of cmd
func printer(cmd *cobra.Command) *ui.Printer {
	return ui.NewPrinter(cmd.OutOrStdout())
}

// printJSON writes v as indented JSON
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// deviceParams are the header lines describing a device
func deviceParams(desc protocol.Descriptor) []ui.Detail {
	params := []ui.Detail{ui.D("Device", desc.ID)}
	if desc.Name != "" {
		params = append(params, ui.D("Name", desc.Name))
	}
	ports := desc.Family.BroadcastPorts()
	beacons := make([]string, len(ports))
	for i, port := range ports {
		beacons[i] = strconv.Itoa(port)
	}
	return append(params,
		ui.D("Family", desc.Family),
		ui.D("Address", desc.Addr()),
		ui.D("Beacons", "UDP "+strings.Join(beacons, ", ")),
	)
}
