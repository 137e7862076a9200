package domain


// ReloadMode selects the notification sent to browser clients.
type ReloadMode uint8

const (
	// ReloadNone sends nothing.
	ReloadNone ReloadMode = iota
	// ReloadFull asks clients to reload the page.
	ReloadFull
	// ReloadInject asks clients to swap stylesheets in place.
	ReloadInject
)

// ParseReloadMode converts a configuration keyword into a ReloadMode.
// The empty string maps to ReloadNone.
func ParseReloadMode(s string) (ReloadMode, error) {
	switch s {
	case "", "none":
		return ReloadNone, nil
	case "reload", "full":
		return ReloadFull, nil
	case "inject", "stream":
		return ReloadInject, nil
	default:
		return ReloadNone, Annotate(ErrInvalidReloadMode, "reload", s)
	}
}

// String returns the configuration keyword of the mode.
func (m ReloadMode) String() string {
	switch m {
	case ReloadFull:
		return "reload"
	case ReloadInject:
		return "inject"
	default:
		return "none"
	}
}
