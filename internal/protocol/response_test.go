package protocol

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestLoginToken(t *testing.T) {
	resp := make([]byte, 48)
	copy(resp[8:], []byte{0xca, 0xfe, 0xba, 0xbe})

	got, err := LoginToken(resp)
	if err != nil {
		t.Fatalf("LoginToken() error = %v", err)
	}
	if got.String() != "cafebabe" {
		t.Errorf("token = %s, want cafebabe", got)
	}

	if _, err := LoginToken(resp[:10]); err == nil {
		t.Error("LoginToken(short) = nil error")
	}
}

func TestDecodeStatusSwitch(t *testing.T) {
	resp := make([]byte, 101)
	resp[75], resp[76] = 0x01, 0x00
	binary.LittleEndian.PutUint16(resp[77:], 2100)
	binary.LittleEndian.PutUint32(resp[89:], 600)
	binary.LittleEndian.PutUint32(resp[97:], 3600)

	st, err := DecodeStatus(V4, resp)
	if err != nil {
		t.Fatalf("DecodeStatus() error = %v", err)
	}
	want := SwitchState{Power: On, PowerConsumption: 2100, RemainingSeconds: 600, DefaultShutdownSeconds: 3600}
	if st.Switch == nil || *st.Switch != want {
		t.Errorf("Switch = %+v, want %+v", st.Switch, want)
	}

	resp[75] = 0x00
	st, _ = DecodeStatus(V4, resp)
	if st.Switch.Power != Off {
		t.Errorf("Power = %s, want OFF", st.Switch.Power)
	}
}

func TestDecodeStatusShutter(t *testing.T) {
	resp := make([]byte, 90)
	binary.LittleEndian.PutUint16(resp[77:], 65)
	resp[79], resp[80] = 0x00, 0x01

	st, err := DecodeStatus(Runner, resp)
	if err != nil {
		t.Fatalf("DecodeStatus() error = %v", err)
	}
	if st.Shutter == nil || len(st.Shutter.Channels) != 1 {
		t.Fatalf("Shutter = %+v", st.Shutter)
	}
	ch := st.Shutter.Channels[0]
	if ch.Position != 65 || ch.Direction != DirectionDown {
		t.Errorf("channel = %+v, want position 65 DOWN", ch)
	}
}

func TestDecodeStatusBreezeVersions(t *testing.T) {
	build := func(n int, remote string) []byte {
		resp := make([]byte, n)
		binary.LittleEndian.PutUint16(resp[76:], 231)
		resp[78] = 0x01
		resp[79] = byte(ModeHeat)
		resp[80] = 26
		resp[81] = 0x30
		copy(resp[83:], remote)
		return resp
	}

	tests := []struct {
		name       string
		resp       []byte
		wantRemote string
		wantErr    bool
	}{
		{"wide remote", build(100, "ELEC7001ABCD"), "ELEC7001ABCD", false},
		{"narrow remote", build(91, "ELEC7001ABCD"[:8]), "ELEC7001", false},
		{"too short", build(88, ""), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := DecodeStatus(Breeze, tt.resp)
			if tt.wantErr {
				var de *DecodeError
				if !errors.As(err, &de) {
					t.Errorf("error = %v, want *DecodeError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeStatus() error = %v", err)
			}
			b := st.Breeze
			if b.Remote != tt.wantRemote {
				t.Errorf("Remote = %q, want %q", b.Remote, tt.wantRemote)
			}
			if b.CurrentTemp != 23.1 {
				t.Errorf("CurrentTemp = %v, want 23.1", b.CurrentTemp)
			}
			want := ACState{Power: On, Mode: ModeHeat, Fan: FanHigh, TargetTemp: 26, Swing: Off}
			if b.ACState != want {
				t.Errorf("ACState = %+v, want %+v", b.ACState, want)
			}
		})
	}
}

func TestDecodeStatusMalformed(t *testing.T) {
	_, err := DecodeStatus(PowerPlug, make([]byte, 60))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *DecodeError", err)
	}
	if de.Have != 60 {
		t.Errorf("Have = %d, want 60", de.Have)
	}
}

func TestDecodeStatusUnknownFamily(t *testing.T) {
	st, err := DecodeStatus(Unknown(0xff), make([]byte, 10))
	if err != nil {
		t.Fatalf("DecodeStatus() error = %v", err)
	}
	if st.Switch != nil || st.Shutter != nil || st.Breeze != nil {
		t.Errorf("Status = %+v, want empty", st)
	}
}
