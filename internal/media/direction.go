package media

import "fmt"

// Direction identifies one independently started stream of a device.
type Direction int

// Stream directions.
const (
	Capture Direction = iota // video in, read from the decoder's stdout
	Playout                  // audio out, written to the encoder's stdin
	Record                   // audio in, read from the decoder's stdout
)

// Directions lists every direction in a stable order.
var Directions = []Direction{Capture, Playout, Record}

func (d Direction) String() string {
	switch d {
	case Capture:
		return "capture"
	case Playout:
		return "playout"
	case Record:
		return "record"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Reads reports whether the direction consumes the process output.
func (d Direction) Reads() bool {
	return d != Playout
}

// ParseDirection converts a direction name to a Direction.
func ParseDirection(s string) (Direction, error) {
	for _, d := range Directions {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown stream direction %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
