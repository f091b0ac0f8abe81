package protocol

// STEP (client -> server): advance the simulation by N ticks.
type StepMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	N               int    `json:"n"`
}

// RESET / START / STOP / PING (client -> server) carry no payload beyond the
// base message and are decoded via DecodeBase.

// STATE (server -> client): full snapshot push, sent once per tick while the
// simulation is running and in reply to STEP.
type StateMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	State           WorldState `json:"state"`
}

// ERROR (server -> client).
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// ACK (server -> client): reply to RESET/START/STOP.
type AckMsg struct {
	Type string `json:"type"`
	Op   string `json:"op"`
	Tick uint64 `json:"tick"`
}

func NewStateMsg(s WorldState) StateMsg {
	return StateMsg{Type: TypeState, ProtocolVersion: Version, State: s}
}

func NewErrorMsg(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, Code: code, Message: msg}
}
