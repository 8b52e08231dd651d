package tier

import (
	"fmt"
	"strings"
)

// Consistency fija cuándo el active confirma una mutación al cliente
// respecto de la replicación a los passives. Se define al crear el store y no cambia.
type Consistency uint8

const (
	// Strong: el active espera el ack de cada passive alcanzable.
	Strong Consistency = iota + 1
	// Eventual: el active confirma apenas aplica localmente.
	Eventual
)

func (c Consistency) String() string {
	switch c {
	case Strong:
		return "STRONG"
	case Eventual:
		return "EVENTUAL"
	default:
		return fmt.Sprintf("Consistency(%d)", uint8(c))
	}
}

// WaitsForPassives reporta si el ack al cliente espera la replicación.
func (c Consistency) WaitsForPassives() bool { return c == Strong }

// ParseConsistency acepta "strong" / "eventual" sin importar mayúsculas.
func ParseConsistency(s string) (Consistency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STRONG":
		return Strong, nil
	case "EVENTUAL":
		return Eventual, nil
	default:
		return 0, fmt.Errorf("unknown consistency %q", s)
	}
}

func (c Consistency) MarshalText() ([]byte, error) {
	if c != Strong && c != Eventual {
		return nil, fmt.Errorf("invalid consistency %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Consistency) UnmarshalText(b []byte) error {
	v, err := ParseConsistency(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
