// Package domain contains core domain types for the Deepfake Defender game.
package domain

import (
	"fmt"
	"strings"
)

// Label classifies a candidate image.
type Label int

const (
	// LabelAI marks an AI-generated image.
	LabelAI Label = iota
	// LabelReal marks a photograph of a real person.
	LabelReal
)

// Labels lists every label in a stable order.
var Labels = []Label{LabelAI, LabelReal}

func (l Label) String() string {
	switch l {
	case LabelAI:
		return "ai"
	case LabelReal:
		return "real"
	default:
		return fmt.Sprintf("label(%d)", int(l))
	}
}

// Side is a display position.
type Side int

const (
	// SideLeft is the left-hand image.
	SideLeft Side = iota
	// SideRight is the right-hand image.
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Title returns the capitalised side name used in player-facing messages.
func (s Side) Title() string {
	if s == SideLeft {
		return "Left"
	}
	return "Right"
}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// ParseSide parses "left" or "right" (case-insensitive).
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return SideLeft, nil
	case "right", "r":
		return SideRight, nil
	default:
		return 0, fmt.Errorf("invalid side %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(text []byte) error {
	v, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ImageRef is an opaque handle to one candidate image.
// The ID never encodes the label so it is safe to hand to clients.
type ImageRef struct {
	ID    string
	Label Label
}
