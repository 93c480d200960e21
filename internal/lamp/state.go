package lamp

// Characteristic names used throughout the lamp and bridge layers.
const (
	CharPower       = "power"
	CharBrightness  = "brightness"
	CharTemperature = "temperature"
)

// Characteristics lists the three bulb characteristics in read order.
var Characteristics = []string{CharPower, CharBrightness, CharTemperature}

// Scale bounds for brightness and colour temperature values.
const (
	MinLevel = 1
	MaxLevel = 100
)

// Power is the tri-state power value of a bulb. The zero value is
// PowerUnknown so an unread cache never masquerades as a real state.
type Power int

// Power states.
const (
	PowerUnknown Power = iota
	PowerOff
	PowerOn
)

// String returns the MQTT wire representation of the power state.
func (p Power) String() string {
	switch p {
	case PowerOn:
		return "ON"
	case PowerOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// Level is a tri-state numeric value on the 1-100 scale. The zero value
// is unknown; known values are always within [MinLevel, MaxLevel].
type Level struct {
	known bool
	value int
}

// LevelOf returns a known Level, clamping v into [MinLevel, MaxLevel].
func LevelOf(v int) Level {
	return Level{known: true, value: Clamp(v)}
}

// Known reports whether the value has been learned from the device.
func (l Level) Known() bool { return l.known }

// Value returns the level. Only meaningful when Known() is true.
func (l Level) Value() int { return l.value }

// Clamp forces v into the [MinLevel, MaxLevel] scale.
func Clamp(v int) int {
	if v < MinLevel {
		return MinLevel
	}
	if v > MaxLevel {
		return MaxLevel
	}
	return v
}

// ConnectionState is the lamp's position in the connection lifecycle.
type ConnectionState int32

// Connection lifecycle states.
const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected  // characteristics discovered
	StateSubscribed // notifications armed
)

// String returns a human-readable state name for logging.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	default:
		return "invalid"
	}
}
