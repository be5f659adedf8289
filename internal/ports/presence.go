package ports

// PresenceSource reports whether the host currently has network presence.
// Subscribe delivers transitions only and returns a func that removes the listener.
type PresenceSource interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}
