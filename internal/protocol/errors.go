package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Caller misuse: bad parameters such as out-of-range step counts.
	ErrBadRequest = "E_BAD_REQUEST"

	// Lookup against an id that no longer exists. Expected race between
	// external readers and the running simulation, never fatal.
	ErrNotFound = "E_NOT_FOUND"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrNotFound:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
