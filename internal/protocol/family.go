package protocol

import (
	"fmt"
	"strings"
)

// FamilyKind enumerates the device models the protocol knows about.
type FamilyKind uint8

const (
	KindUnknown FamilyKind = iota
	KindPowerPlug
	KindV2QCA
	KindV2ESP
	KindV3
	KindV4
	KindMini
	KindRunner
	KindRunnerMini
	KindBreeze
	KindS11
	KindS12
)

// StateKind selects which live-state table applies to a family.
type StateKind uint8

const (
	StateNone StateKind = iota
	StateSwitch
	StateShutter
	StateBreeze
)

// familyInfo is the per-family data selected once from a beacon or a name.
type familyInfo struct {
	name     string
	group    byte // product group byte, 0 when the model code alone identifies the family
	code     byte
	newGen   bool // TCP 10000, v2 login, v2 status request
	state    StateKind
	channels int // shutter channels
	lights   int
}

var families = [...]familyInfo{
	KindUnknown:    {name: "unknown"},
	KindPowerPlug:  {name: "power_plug", code: 0xa8, state: StateSwitch},
	KindV2QCA:      {name: "v2_qca", code: 0xa1, state: StateSwitch},
	KindV2ESP:      {name: "v2_esp", code: 0xa7, state: StateSwitch},
	KindV3:         {name: "v3", code: 0x0b, state: StateSwitch},
	KindV4:         {name: "v4", code: 0x17, state: StateSwitch},
	KindMini:       {name: "mini", code: 0x0f, state: StateSwitch},
	KindRunner:     {name: "runner", code: 0x01, newGen: true, state: StateShutter, channels: 1},
	KindRunnerMini: {name: "runner_mini", code: 0x02, newGen: true, state: StateShutter, channels: 1},
	KindBreeze:     {name: "breeze", group: 0x0e, code: 0x01, newGen: true, state: StateBreeze},
	KindS11:        {name: "s11", group: 0x0f, code: 0x01, newGen: true, state: StateShutter, channels: 1, lights: 2},
	KindS12:        {name: "s12", group: 0x0f, code: 0x02, newGen: true, state: StateShutter, channels: 2, lights: 1},
}

// Family identifies a device model. The zero value is Unknown(0).
type Family struct {
	kind FamilyKind
	code byte
}

// Known families.
var (
	PowerPlug  = Family{kind: KindPowerPlug, code: 0xa8}
	V2QCA      = Family{kind: KindV2QCA, code: 0xa1}
	V2ESP      = Family{kind: KindV2ESP, code: 0xa7}
	V3         = Family{kind: KindV3, code: 0x0b}
	V4         = Family{kind: KindV4, code: 0x17}
	Mini       = Family{kind: KindMini, code: 0x0f}
	Runner     = Family{kind: KindRunner, code: 0x01}
	RunnerMini = Family{kind: KindRunnerMini, code: 0x02}
	Breeze     = Family{kind: KindBreeze, code: 0x01}
	S11        = Family{kind: KindS11, code: 0x01}
	S12        = Family{kind: KindS12, code: 0x02}
)

// Unknown returns the family variant for an unrecognized model code.
func Unknown(code byte) Family {
	return Family{kind: KindUnknown, code: code}
}

// FamilyFromCode resolves the product group and model code bytes of a beacon.
// Group-qualified models are matched first because several newer models reuse
// the model codes of the runner line.
func FamilyFromCode(group, code byte) Family {
	for k, info := range families {
		if info.group != 0 && info.group == group && info.code == code {
			return Family{kind: FamilyKind(k), code: code}
		}
	}
	for k, info := range families {
		if FamilyKind(k) != KindUnknown && info.group == 0 && info.code == code {
			return Family{kind: FamilyKind(k), code: code}
		}
	}
	return Unknown(code)
}

// ParseFamily resolves a family by name ("power_plug", "breeze", ...).
// "unknown(xx)" round-trips the String form of an unknown family.
func ParseFamily(name string) (Family, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, info := range families {
		if FamilyKind(k) != KindUnknown && info.name == name {
			return Family{kind: FamilyKind(k), code: info.code}, nil
		}
	}
	var code byte
	if _, err := fmt.Sscanf(name, "unknown(%02x)", &code); err == nil {
		return Unknown(code), nil
	}
	return Family{}, fmt.Errorf("unknown device family %q", name)
}

func (f Family) info() familyInfo { return families[f.kind] }

// Kind returns the family enum value.
func (f Family) Kind() FamilyKind { return f.kind }

// Code returns the raw model code byte.
func (f Family) Code() byte { return f.code }

// IsUnknown reports whether the model code was not recognized.
func (f Family) IsUnknown() bool { return f.kind == KindUnknown }

// NewGeneration reports whether the family uses TCP port 10000 and the v2
// login and status requests.
func (f Family) NewGeneration() bool { return f.info().newGen }

// StateKind returns which live-state table applies to the family.
func (f Family) StateKind() StateKind { return f.info().state }

// Channels returns the number of shutter channels (0 for non-shutters).
func (f Family) Channels() int { return f.info().channels }

// Lights returns the number of switchable light circuits.
func (f Family) Lights() int { return f.info().lights }

// TCPPort returns the command port for the family.
func (f Family) TCPPort() int {
	if f.NewGeneration() {
		return TCPPort
	}
	return LegacyTCPPort
}

// BroadcastPorts returns the UDP ports on which devices of this family
// announce their state.
func (f Family) BroadcastPorts() []int {
	if f.NewGeneration() {
		return []int{BroadcastPortType2, BroadcastPortType2New}
	}
	return []int{BroadcastPortType1, BroadcastPortType1New}
}

// String returns the family name, or "unknown(xx)" with the raw code.
func (f Family) String() string {
	if f.kind == KindUnknown {
		return fmt.Sprintf("unknown(%02x)", f.code)
	}
	return f.info().name
}

// MarshalText implements encoding.TextMarshaler.
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Family) UnmarshalText(text []byte) error {
	parsed, err := ParseFamily(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// FamilyNames lists the names of all known families.
func FamilyNames() []string {
	names := make([]string, 0, len(families)-1)
	for k, info := range families {
		if FamilyKind(k) != KindUnknown {
			names = append(names, info.name)
		}
	}
	return names
}
