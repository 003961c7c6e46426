package protocol

// Status is a decoded status response. Exactly one field is set, chosen by
// the family's state kind.
type Status struct {
	Switch  *SwitchState  `json:"switch,omitempty"`
	Shutter *ShutterState `json:"shutter,omitempty"`
	Breeze  *BreezeState  `json:"breeze,omitempty"`
}

// LoginToken extracts the session token from a login response.
func LoginToken(resp []byte) (SessionToken, error) {
	var token SessionToken
	if err := need(resp, "session token", offSession, len(token)); err != nil {
		return token, err
	}
	copy(token[:], resp[offSession:offSession+len(token)])
	return token, nil
}

// DecodeStatus decodes a status response according to the family's table.
// Families without a state table yield an empty Status.
func DecodeStatus(f Family, resp []byte) (Status, error) {
	var (
		st  Status
		err error
	)
	switch f.StateKind() {
	case StateSwitch:
		st.Switch, err = decodeSwitch(resp, switchStatusLayout)
	case StateShutter:
		st.Shutter, err = decodeShutter(resp, shutterStatusLayout, 1)
	case StateBreeze:
		var l breezeLayout
		if l, err = breezeStatusLayout(len(resp)); err == nil {
			st.Breeze, err = decodeBreeze(resp, l)
		}
	}
	if err != nil {
		return Status{}, err
	}
	return st, nil
}
