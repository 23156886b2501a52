package identity

// HostID identifies a host by its name. The zero value is the bad host; it has
// no name and equals only another bad host.
type HostID struct {
	name string
}

// NewHostID returns a host identity for name. An empty name yields BadHostID.
func NewHostID(name string) HostID {
	return HostID{name: name}
}

// BadHostID returns the distinguished invalid host.
func BadHostID() HostID {
	return HostID{}
}

// Name returns host name
func (h HostID) Name() string {
	return h.name
}

// IsValid returns true when the host has a name
func (h HostID) IsValid() bool {
	return h.name != ""
}

// Equal reports whether both identities name the same host
func (h HostID) Equal(other HostID) bool {
	return h.name == other.name
}

func (h HostID) String() string {
	if !h.IsValid() {
		return "bad-host"
	}
	return h.name
}

// MarshalText encodes the host name; the bad host encodes as an empty string.
func (h HostID) MarshalText() ([]byte, error) {
	return []byte(h.name), nil
}

// UnmarshalText decodes a host name
func (h *HostID) UnmarshalText(data []byte) error {
	h.name = string(data)
	return nil
}
