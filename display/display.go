// Package display renders assistant screen-out payloads for the user.
package display

// Display receives HTML screen-out payloads. Show never blocks the
// conversation turn.
type Display interface {
	Show(data []byte)
}

// Noop discards screen-out payloads. Used when the display is disabled.
type Noop struct{}

var _ Display = Noop{}

func (Noop) Show([]byte) {}
