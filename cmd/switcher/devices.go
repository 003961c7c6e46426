package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/muurk/switcher/internal/bridge"
	"github.com/muurk/switcher/internal/protocol"
	"github.com/muurk/switcher/internal/ui"
)

func init() {
	devicesCmd.Flags().StringVar(&bridgeURL, "bridge", "", "List the devices a bridge has seen instead of the registry")
	devicesCmd.AddCommand(renameCmd, forgetCmd)
	rootCmd.AddCommand(devicesCmd)
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List remembered devices",
	Long: `List the devices remembered in the configuration file, or with
--bridge the last beacon of every device a running bridge has seen.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := printer(cmd)
		if bridgeURL != "" {
			msgs, err := bridge.FetchDevices(cmd.Context(), bridgeURL)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, msgs)
			}
			rows := make([]ui.DeviceRow, 0, len(msgs))
			for _, msg := range msgs {
				if msg.Beacon != nil {
					rows = append(rows, ui.RowFromBeacon(msg.Beacon, msg.ReceivedAt))
				}
			}
			p.Devices(rows)
			return nil
		}

		ids := make([]string, 0, len(registry.Devices))
		for id := range registry.Devices {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		if jsonOutput {
			return printJSON(cmd, registry.Devices)
		}
		rows := make([]ui.DeviceRow, 0, len(ids))
		for _, id := range ids {
			devID, err := protocol.ParseDeviceID(id)
			if err != nil {
				continue
			}
			d := registry.Devices[id]
			rows = append(rows, ui.DeviceRow{
				ID:       devID,
				Name:     d.DisplayName(),
				Family:   d.Family,
				IP:       d.LastIP,
				LastSeen: d.LastSeen,
			})
		}
		p.Devices(rows)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <device> <nickname>",
	Short: "Give a remembered device a nickname",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _, ok := registry.Lookup(args[0])
		if !ok {
			devID, err := protocol.ParseDeviceID(args[0])
			if err != nil {
				return fmt.Errorf("device %q is not in the registry", args[0])
			}
			id = devID.String()
		}
		registry.SetDeviceNickname(id, args[1])
		if err := registry.Save(); err != nil {
			return err
		}
		printer(cmd).Success("Device renamed", ui.D("ID", id), ui.D("Nickname", args[1]))
		return nil
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <device>",
	Short: "Remove a device from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _, ok := registry.Lookup(args[0])
		if !ok {
			return fmt.Errorf("device %q is not in the registry", args[0])
		}
		delete(registry.Devices, id)
		if err := registry.Save(); err != nil {
			return err
		}
		printer(cmd).Success("Device forgotten", ui.D("ID", id))
		return nil
	},
}
