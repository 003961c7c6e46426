// Package ui renders terminal output for the switcher CLI.
//
// Most commands run once and exit: they print a Header, do their work and
// finish with a Result box. The watch command is the exception and runs a
// Bubble Tea program that redraws a device table as beacons arrive.
//
// # Components
//
//   - Header: command banner with the operation and its parameters
//   - Result: success, failure or warning box with details and tips
//   - DeviceTable: one row per device with its decoded state
//   - WatchModel: live device table fed by a discovery stream
//
// Example:
//
//	p := ui.NewPrinter(os.Stdout)
//	p.Header("Device Status", "switcher status boiler", ui.D("Device", desc.ID))
//	p.Success("Status read", ui.StatusDetails(st)...)
//
// # Logging Integration
//
// Logging is controlled via the SWITCHER_LOG_LEVEL environment variable.
// When unset, zap logging is silent so the styled output stays clean.
package ui
