package protocol

// Wire error codes sent in ERROR messages.
const (
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	ErrWorldNotFound = "E_WORLD_NOT_FOUND"
	ErrWorldMismatch = "E_WORLD_MISMATCH"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrWorldNotFound:   {},
	ErrWorldMismatch:   {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
