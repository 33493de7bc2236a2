package device

import (
	"fmt"
	"os/exec"
)

// Board abstracts the optional sensor and actuator hardware a device may
// carry. The concrete variant is chosen once at startup and injected;
// handlers never probe for hardware themselves.
type Board interface {
	// SetPower switches the controlled appliance on or off.
	SetPower(on bool) error

	// Temperature returns the room temperature in degrees Celsius.
	Temperature() (float64, error)

	// Humidity returns the relative humidity in percent.
	Humidity() (float64, error)

	// Pressure returns the air pressure in hPa.
	Pressure() (float64, error)

	// Altitude returns the elevation in meters.
	Altitude() (float64, error)

	// LightLevel returns the ambient light sensor ratio in percent.
	LightLevel() (float64, error)
}

// NoopBoard is used when no hardware is attached: actuation is ignored
// and every sensor reads zero.
type NoopBoard struct{}

var _ Board = NoopBoard{}

func (NoopBoard) SetPower(bool) error           { return nil }
func (NoopBoard) Temperature() (float64, error) { return 0, nil }
func (NoopBoard) Humidity() (float64, error)    { return 0, nil }
func (NoopBoard) Pressure() (float64, error)    { return 0, nil }
func (NoopBoard) Altitude() (float64, error)    { return 0, nil }
func (NoopBoard) LightLevel() (float64, error)  { return 0, nil }

// ScriptBoard actuates by running configured external commands, for
// setups where the appliance is switched by a helper binary. Sensors read
// zero.
type ScriptBoard struct {
	NoopBoard
	PowerOnCommand  string
	PowerOffCommand string
}

var _ Board = ScriptBoard{}

func (b ScriptBoard) SetPower(on bool) error {
	command := b.PowerOffCommand
	if on {
		command = b.PowerOnCommand
	}
	if command == "" {
		return nil
	}
	if err := exec.Command(command).Run(); err != nil {
		return fmt.Errorf("power command %s failed: %w", command, err)
	}
	return nil
}
