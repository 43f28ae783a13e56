package remote

import "errors"

var (
	ErrInvalidURI     = errors.New("invalid URI")
	ErrDoesNotExist   = errors.New("object does not exist")
	ErrNotPublishable = errors.New("destination does not accept uploads")
	ErrDigestMismatch = errors.New("digest mismatch")
)
