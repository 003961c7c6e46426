package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/switcher/internal/breeze"
	"github.com/muurk/switcher/internal/irset"
	"github.com/muurk/switcher/internal/ui"
)

func init() {
	irsetCmd.AddCommand(irsetListCmd, irsetImportCmd, irsetShowCmd)
	rootCmd.AddCommand(irsetCmd)
}

var irsetCmd = &cobra.Command{
	Use:   "irset",
	Short: "Manage the IR capability sets used by breeze devices",
	Long: `A breeze sends the IR codes of the AC remote it was paired with. The
codes come from one JSON file per remote in <config dir>/irsets/, in the
format the vendor app exports.`,
}

var irsetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored IR sets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := irsetStore()
		if err != nil {
			return err
		}
		ids, err := store.List()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, ids)
		}

		p := printer(cmd)
		if len(ids) == 0 {
			p.Warning("No IR sets in " + store.Dir())
			p.Println("Import one with 'switcher irset import <file>'")
			return nil
		}
		p.Printf("%d IR set(s) in %s:\n\n", len(ids), store.Dir())
		for _, id := range ids {
			p.Printf("  %s\n", id)
		}
		return nil
	},
}

var irsetImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Validate IR set files and copy them into the store",
	Example: `  switcher irset import ~/Downloads/ELEC7022.json`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := irsetStore()
		if err != nil {
			return err
		}

		var imported []breeze.Capabilities
		for _, path := range args {
			set, err := importIRSet(store, path)
			if err != nil {
				return err
			}
			imported = append(imported, breeze.DeriveCapabilities(set))
		}
		if jsonOutput {
			return printJSON(cmd, imported)
		}

		p := printer(cmd)
		for _, caps := range imported {
			p.Success("IR set imported",
				ui.D("Remote", caps.Remote),
				ui.D("Modes", caps.Modes),
				ui.D("Fan levels", caps.FanLevels),
				ui.D("Temperature", fmt.Sprintf("%d-%d°C", caps.MinTemp, caps.MaxTemp)),
				ui.D("Swing", caps.Swing),
			)
		}
		return nil
	},
}

var irsetShowCmd = &cobra.Command{
	Use:   "show <remote>",
	Short: "Print a stored IR set in the vendor format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := irsetStore()
		if err != nil {
			return err
		}
		set, err := store.CapabilitySet(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := irset.Encode(set)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

func irsetStore() (*irset.Store, error) {
	dir, err := registry.IRSetDir()
	if err != nil {
		return nil, fmt.Errorf("failed to locate the IR set directory: %w", err)
	}
	return irset.NewStore(dir), nil
}

// importIRSet parses the IR set at path and saves it under its remote id
func importIRSet(store *irset.Store, path string) (*breeze.CapabilitySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read IR set: %w", err)
	}
	set, err := irset.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := store.Save(set); err != nil {
		return nil, err
	}
	return set, nil
}
