package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// World routing/state.
	ErrWorldBusy = "E_WORLD_BUSY"

	// Input layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnknownAgent  = "E_UNKNOWN_AGENT"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrMaxLevel      = "E_MAX_LEVEL"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrUnavailable   = "E_UNAVAILABLE"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrWorldBusy:       {},
	ErrBadRequest:      {},
	ErrUnknownAgent:    {},
	ErrInvalidTarget:   {},
	ErrMaxLevel:        {},
	ErrRateLimit:       {},
	ErrUnavailable:     {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
