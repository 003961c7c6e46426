package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/switcher/internal/device"
	"github.com/muurk/switcher/internal/protocol"
	"github.com/muurk/switcher/internal/transport"
	"github.com/muurk/switcher/internal/ui"
)

// Control command flags
var (
	onMinutes int
	gang      int
)

func init() {
	for _, cmd := range []*cobra.Command{statusCmd, onCmd, offCmd, shutdownCmd, positionCmd, stopCmd, childLockCmd, lightCmd} {
		addTargetFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
	onCmd.Flags().IntVar(&onMinutes, "minutes", 0, "Turn off again after this many minutes (0 = no timer)")
	for _, cmd := range []*cobra.Command{positionCmd, stopCmd, childLockCmd} {
		cmd.Flags().IntVar(&gang, "gang", 0, "Shutter channel of multi-channel runners")
	}
}

// operation runs against an open device and returns the JSON result and
// the detail lines of the success box
type operation func(ctx context.Context, c *device.Controller) (any, []ui.Detail, error)

// withDevice opens the device named by key, prints the command header, runs
// op and prints its outcome
func withDevice(cmd *cobra.Command, key, title, done string, op operation) error {
	p := printer(cmd)

	c, err := openDevice(cmd, key)
	if err != nil {
		if !jsonOutput {
			p.Failure("Device not found", err, []string{
				"Run 'switcher discover' to list devices on the network",
				"Use --id, --ip and --family to skip discovery",
			})
		}
		return err
	}
	defer c.Close()

	if !jsonOutput {
		p.Header(title, cmd.CommandPath(), deviceParams(c.Descriptor())...)
	}

	result, details, err := op(cmd.Context(), c)
	if err != nil {
		if !jsonOutput {
			p.Failure(title, err, failureHints(err))
		}
		return err
	}

	if jsonOutput {
		return printJSON(cmd, result)
	}
	p.Success(done, details...)
	return nil
}

// failureHints returns the troubleshooting lines printed for a failed
// command
func failureHints(err error) []string {
	hints := transport.Troubleshooting(err)
	if transport.IsRetryable(err) {
		hints = append(hints, "The failure looks transient, running the command again may succeed")
	}
	return hints
}

// result is the JSON shape of a command outcome
type result struct {
	Device protocol.Descriptor `json:"device"`
	Action string              `json:"action"`
	Value  any                 `json:"value,omitempty"`
}

func parseOnOff(s string) (protocol.OnOff, error) {
	var v protocol.OnOff
	err := v.UnmarshalText([]byte(s))
	return v, err
}

var statusCmd = &cobra.Command{
	Use:   "status [device]",
	Short: "Show the live state of a device",
	Example: `  # By name, nickname, id or IP
  switcher status boiler
  switcher status 0a1b2c

  # Without discovery
  switcher status --id 0a1b2c --ip 192.168.1.20 --family v4 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _, _ := splitArgs(args, 0)
		return withDevice(cmd, key, "Device Status", "Status read",
			func(ctx context.Context, c *device.Controller) (any, []ui.Detail, error) {
				st, err := c.Status(ctx)
				if err != nil {
					return nil, nil, err
				}
				if st.Breeze != nil {
					registry.SetRemote(c.Descriptor().ID.String(), st.Breeze.Remote)
					remember(c.Descriptor())
				}
				return struct {
					Device protocol.Descriptor `json:"device"`
					protocol.Status
				}{c.Descriptor(), st}, ui.StatusDetails(st), nil
			})
	},
}

var onCmd = &cobra.Command{
	Use:   "on [device]",
	Short: "Turn a switch on",
	Example: `  switcher on boiler
  switcher on boiler --minutes 45`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _, _ := splitArgs(args, 0)
		return withDevice(cmd, key, "Turn On", "Device turned on",
			func(ctx context.Context, c *device.Controller) (any, []ui.Detail, error) {
				if err := c.TurnOn(ctx, onMinutes); err != nil {
					return nil, nil, err
				}
				details := []ui.Detail{ui.D("Power", protocol.On)}
				if onMinutes > 0 {
					details = append(details, ui.D("Timer", ui.FormatSeconds(onMinutes*60)))
				}
				return result{c.Descriptor(), "on", onMinutes}, details, nil
			})
	},
}

var offCmd = &cobra.Command{
	Use:   "off [device]",
	Short: "Turn a switch off",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _, _ := splitArgs(args, 0)
		return withDevice(cmd, key, "Turn Off", "Device turned off",
			func(ctx context.Context, c *device.Controller) (any, []ui.Detail, error) {
				if err := c.TurnOff(ctx); err != nil {
					return nil, nil, err
				}
				return result{Device: c.Descriptor(), Action: "off"}, []ui.Detail{ui.D("Power", protocol.Off)}, nil
			})
	},
}

// parseShutdown accepts seconds ("3600") or a Go duration ("1h30m")
func parseShutdown(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: use seconds or a duration like 1h30m", s)
	}
	return int(d.Seconds()), nil
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown [device] <duration>",
	Short: "Set the automatic shutdown of a water heater",
	Long: `Set how long a water heater stays on before turning itself off.

The device accepts 1 to 23:59 hours; other values are clamped into that
range and the value actually sent is printed.`,
	Example: `  switcher shutdown boiler 2h
  switcher shutdown boiler 5400`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, values, err := splitArgs(args, 1)
		if err != nil {
			return err
		}
		seconds, err := parseShutdown(values[0])
		if err != nil {
			return err
		}
		return withDevice(cmd, key, "Auto Shutdown", "Auto shutdown set",
			func(ctx context.Context, c *device.Controller) (any, []ui.Detail, error) {
				sent, err := c.SetDefaultShutdown(ctx, seconds)
				if err != nil {
					return nil, nil, err
				}
				details := []ui.Detail{ui.D("Auto shutdown", ui.FormatSeconds(sent))}
				if sent != seconds {
					details = append(details, ui.D("Requested", ui.FormatSeconds(seconds)))
				}
				return result{c.Descriptor(), "shutdown", sent}, details, nil
			})
	},
}

var positionCmd = &cobra.Command{
	Use:   "position [device] <percent>",
	Short: "Move a shutter to a position (0 closed, 100 open)",
	Example: `  switcher position bedroom 50
  switcher position living 100 --gang 1`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, values, err := splitArgs(args, 1)
		if err != nil {
			return err
		}
		pos, err := strconv.Atoi(values[0])
		if err != nil {
			return fmt.Errorf("invalid position %q", values[0])
		}
		return withDevice(cmd, key, "Shutter Position", "Shutter moving",
			func(ctx context.Context, c *device.Controller) (any, []ui.Detail, error) {
				if err := c.SetPosition(ctx, pos, gang); err != nil {
					return nil, nil, err
				}
				return result{c.Descriptor(), "position", pos},
					[]ui.Detail{ui.D("Position", fmt.Sprintf("%d%%", pos)), ui.D("Channel", gang)}, nil
			})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [device]",
	Short: "Stop a moving shutter",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _, _ := splitArgs(args, 0)
		return withDevice(cmd, key, "Stop Shutter", "Shutter stopped",
			func(ctx context.Context, c *device.Controller) (any, []ui.Detail, error) {
				if err := c.Stop(ctx, gang); err != nil {
					return nil, nil, err
				}
				return result{Device: c.Descriptor(), Action: "stop"}, []ui.Detail{ui.D("Channel", gang)}, nil
			})
	},
}

var childLockCmd = &cobra.Command{
	Use:     "child-lock [device] <on|off>",
	Short:   "Lock or unlock the shutter buttons",
	Example: `  switcher child-lock bedroom on`,
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, values, err := splitArgs(args, 1)
		if err != nil {
			return err
		}
		lock, err := parseOnOff(values[0])
		if err != nil {
			return err
		}
		return withDevice(cmd, key, "Child Lock", "Child lock set",
			func(ctx context.Context, c *device.Controller) (any, []ui.Detail, error) {
				if err := c.SetChildLock(ctx, gang, lock == protocol.On); err != nil {
					return nil, nil, err
				}
				return result{c.Descriptor(), "child-lock", lock},
					[]ui.Detail{ui.D("Child lock", lock), ui.D("Channel", gang)}, nil
			})
	},
}

var lightCmd = &cobra.Command{
	Use:     "light [device] <index> <on|off>",
	Short:   "Switch a light of an S11/S12 runner",
	Example: `  switcher light hallway 0 on`,
	Args:    cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, values, err := splitArgs(args, 2)
		if err != nil {
			return err
		}
		index, err := strconv.Atoi(values[0])
		if err != nil {
			return fmt.Errorf("invalid light index %q", values[0])
		}
		on, err := parseOnOff(values[1])
		if err != nil {
			return err
		}
		return withDevice(cmd, key, "Light", "Light switched",
			func(ctx context.Context, c *device.Controller) (any, []ui.Detail, error) {
				if err := c.SetLight(ctx, index, on == protocol.On); err != nil {
					return nil, nil, err
				}
				return result{c.Descriptor(), "light", on},
					[]ui.Detail{ui.D("Light", index), ui.D("State", on)}, nil
			})
	},
}
