package config

const (
	// ModePath passes the request URI to the deploy script as its only argument.
	ModePath = 1

	// ModeStatic runs the deploy script with no arguments for every request.
	ModeStatic = 2
)

// WatchdogModeConst as a const int
func WatchdogModeConst(mode string) int {
	switch mode {
	case "path":
		return ModePath
	case "static":
		return ModeStatic
	default:
		return 0
	}
}

// WatchdogMode as a string
func WatchdogMode(mode int) string {
	switch mode {
	case ModePath:
		return "path"
	case ModeStatic:
		return "static"
	default:
		return "unknown"
	}
}
