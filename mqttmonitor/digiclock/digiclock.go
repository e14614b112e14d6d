// Package digiclock drives the M5Stack Digi-Clock unit, a four digit seven
// segment display with a colon behind an I2C microcontroller, and decides
// when the displayed time needs rewriting.
package digiclock

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Address is the unit's default I2C address.
const Address = 0x30

// Register map of the unit firmware.
const (
	regSegments   = 0x00 // Raw segment bytes, one per digit.
	regString     = 0x20 // ASCII string, NUL-terminated.
	regBrightness = 0x30
	regFirmware   = 0xFE
)

// MaxStringLen is the longest string the unit accepts. Dots and colons take a
// character each.
const MaxStringLen = 11

// MaxBrightness is the highest accepted brightness level.
const MaxBrightness = 100

var (
	ErrNotFound     = errors.New("digiclock: unit not found")
	ErrStringLength = errors.New("digiclock: string too long")
)

// Device wraps an I2C connection to a Digi-Clock unit.
type Device struct {
	bus     drivers.I2C
	Address uint16
	buf     [MaxStringLen + 2]byte
}

// New creates a new Digi-Clock connection. The I2C bus must already be
// configured.
//
// This function only creates the Device object, it does not touch the device.
func New(bus drivers.I2C) Device {
	return Device{
		bus:     bus,
		Address: Address,
	}
}

// Configure checks that the unit answers on the bus.
func (d *Device) Configure() error {
	if _, err := d.FirmwareVersion(); err != nil {
		return errors.New(ErrNotFound.Error() + ": " + err.Error())
	}
	return nil
}

// FirmwareVersion reads the unit's firmware version byte.
func (d *Device) FirmwareVersion() (uint8, error) {
	var v [1]byte
	err := d.bus.Tx(d.Address, []byte{regFirmware}, v[:])
	return v[0], err
}

// SetBrightness sets the LED brightness, clamped to MaxBrightness.
func (d *Device) SetBrightness(level uint8) error {
	if level > MaxBrightness {
		level = MaxBrightness
	}
	return d.bus.Tx(d.Address, []byte{regBrightness, level}, nil)
}

// SetString shows s on the display. A colon or dot directly after a digit
// lights the corresponding separator segment.
func (d *Device) SetString(s string) error {
	if len(s) > MaxStringLen {
		return ErrStringLength
	}
	d.buf[0] = regString
	n := copy(d.buf[1:], s)
	d.buf[1+n] = 0
	return d.bus.Tx(d.Address, d.buf[:n+2], nil)
}

// SetSegments writes raw segment bitmaps, one byte per digit position.
func (d *Device) SetSegments(segs [4]byte) error {
	return d.bus.Tx(d.Address, []byte{regSegments, segs[0], segs[1], segs[2], segs[3]}, nil)
}

// ScaleBrightness maps a 16-bit reading, such as an ADC sample from a
// potentiometer, onto 0..MaxBrightness.
func ScaleBrightness(raw uint16) uint8 {
	return uint8((uint32(raw)*MaxBrightness + 0xffff/2) / 0xffff)
}
