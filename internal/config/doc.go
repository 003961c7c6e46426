// Package config provides user configuration management for the switcher CLI.
//
// This package manages a YAML-based configuration file that remembers devices
// seen on the network (name, family, last address, breeze remote) and
// application preferences. The configuration follows OS-specific conventions
// for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations unless
// SWITCHER_CONFIG names a file:
//   - Linux: $XDG_CONFIG_HOME/switcher/config.yaml or $HOME/.config/switcher/config.yaml
//   - macOS: $HOME/.config/switcher/config.yaml
//   - Windows: %LOCALAPPDATA%\switcher\config.yaml
//
// Breeze IR capability sets live next to it in an irsets/ directory unless
// the ir_set_dir preference points elsewhere. A relative ir_set_dir is
// resolved against the directory of the config file.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Remember a discovered device
//	registry.Remember(desc)
//	registry.SetDeviceNickname(desc.ID.String(), "Boiler")
//
//	// Later, address it by nickname
//	desc, err := registry.Descriptor("boiler")
//
//	// Write back to the file it was loaded from
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// A Registry is not safe for concurrent mutation. Saves go through a
// temporary file and a rename, so concurrent readers see either the old or
// the new file.
package config
