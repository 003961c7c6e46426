// Package breeze turns a semantic air-conditioner state into the IR command
// a breeze device should emit.
//
// A remote's CapabilitySet lists its IR waves by key. Keys are built from the
// mode code, the target temperature (COOL and HEAT only), the fan code and an
// optional swing suffix:
//
//	ar24_f1_d1    COOL, 24°, fan LOW, swing on
//	aa_f0         AUTO, fan AUTO
//	on_ar24_f1    power-on variant, when the remote has OnOffType
//	off           power off
//
// Remotes that lack a wave for every combination are served by the first
// wave whose key is contained in the computed key. When nothing matches,
// ErrNoCommand is returned and the caller skips the operation.
//
// Capability sets come from a CapabilityProvider; this package does not care
// where they are stored.
package breeze
