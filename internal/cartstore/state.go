package cartstore

type State int

const (
	Uninitialized State = iota
	GuestLocal
	Merging
	AuthoritativeRemote
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case GuestLocal:
		return "guest_local"
	case Merging:
		return "merging"
	case AuthoritativeRemote:
		return "authoritative_remote"
	default:
		return "unknown"
	}
}

// remote reports whether mutations in this state go to the remote cart API.
func (s State) remote() bool {
	return s == Merging || s == AuthoritativeRemote
}
