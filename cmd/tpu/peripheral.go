package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// peripheralCatalog describes, per pin, which direction the host's physical
// peripherals (button, vehicle counter, lamp driver...) have wired it. The
// catalog itself is out of scope for the TPU core; this struct is just
// enough to drive pinBank's direction flags from a file instead of code.
type peripheralCatalog struct {
	DigitalInputs []uint8 `toml:"digital_inputs"`
	AnalogInputs  []uint8 `toml:"analog_inputs"`
}

func loadPeripheralCatalog(path string) (*peripheralCatalog, error) {
	var cat peripheralCatalog
	if _, err := toml.DecodeFile(path, &cat); err != nil {
		return nil, err
	}
	for _, pin := range cat.DigitalInputs {
		if pin > 15 {
			return nil, fmt.Errorf("digital_inputs: pin %d out of range 0..15", pin)
		}
	}
	for _, pin := range cat.AnalogInputs {
		if pin > 15 {
			return nil, fmt.Errorf("analog_inputs: pin %d out of range 0..15", pin)
		}
	}
	return &cat, nil
}

func (c *peripheralCatalog) apply(bus interface {
	SetDigitalDirection(pin uint8, input bool)
	SetAnalogDirection(pin uint8, input bool)
}) {
	for _, pin := range c.DigitalInputs {
		bus.SetDigitalDirection(pin, true)
	}
	for _, pin := range c.AnalogInputs {
		bus.SetAnalogDirection(pin, true)
	}
}
