package idgen

import "github.com/google/uuid"

// NewFunc returns a new globally unique identifier as string.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new unique identifier
func New() string { return NewFunc() }

// NewSession returns an identifier for one coordinator session
func NewSession() string { return "session-" + NewFunc() }
