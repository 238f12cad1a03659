package instrument

import (
	"fmt"
	"strconv"
	"strings"
)

// Standard wire parsers and formatters for SCPI-style instruments.
// Responses are trimmed before parsing; terminators are stripped by the
// transport, but many instruments pad with spaces.

// FloatParser parses a wire response as a float64 (accepts scientific
// notation, which SCPI instruments commonly emit).
func FloatParser(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing float from %q: %w", raw, err)
	}
	return v, nil
}

// FloatFormatter encodes a float64 for the wire.
func FloatFormatter(v float64) string {
	return strconv.FormatFloat(v, 'G', -1, 64)
}

// IntParser parses a wire response as an int.
func IntParser(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing int from %q: %w", raw, err)
	}
	return v, nil
}

// IntFormatter encodes an int for the wire.
func IntFormatter(v int) string {
	return strconv.Itoa(v)
}

// BoolParser parses the common instrument spellings of a boolean:
// "0"/"1" and "OFF"/"ON" (case-insensitive).
func BoolParser(raw string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "1", "ON":
		return true, nil
	case "0", "OFF":
		return false, nil
	default:
		return false, fmt.Errorf("parsing bool from %q", raw)
	}
}

// OnOffFormatter encodes a bool as "ON"/"OFF".
func OnOffFormatter(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

// BoolFormatter encodes a bool as "1"/"0".
func BoolFormatter(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// StringParser trims a wire response and returns it unchanged.
func StringParser(raw string) (string, error) {
	return strings.TrimSpace(raw), nil
}

// StringFormatter passes a string to the wire unchanged.
func StringFormatter(v string) string { return v }

// ScaledFloatParser returns a parser applying a linear conversion
// value = wire*gain + offset. Useful for instruments that report in a
// different unit or scale than the parameter exposes (e.g. quarter-dB
// attenuator steps).
func ScaledFloatParser(gain, offset float64) func(string) (float64, error) {
	return func(raw string) (float64, error) {
		v, err := FloatParser(raw)
		if err != nil {
			return 0, err
		}
		return v*gain + offset, nil
	}
}

// ScaledFloatFormatter returns the inverse of ScaledFloatParser:
// wire = (value - offset) / gain.
func ScaledFloatFormatter(gain, offset float64) func(float64) string {
	return func(v float64) string {
		return FloatFormatter((v - offset) / gain)
	}
}
