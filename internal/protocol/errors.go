package protocol

// Error codes carried on RESULT messages with ok=false.
const (
	ErrProtoVersionMismatch = "E_PROTO_VERSION_MISMATCH"
	ErrBadRequest           = "E_BAD_REQUEST"
	ErrUnknownType          = "E_UNKNOWN_TYPE"
	ErrInternal             = "E_INTERNAL"
)

var knownCodes = map[string]bool{
	ErrProtoVersionMismatch: true,
	ErrBadRequest:           true,
	ErrUnknownType:          true,
	ErrInternal:             true,
}

// IsKnownCode reports whether code is one of the defined error codes.
func IsKnownCode(code string) bool {
	return knownCodes[code]
}
