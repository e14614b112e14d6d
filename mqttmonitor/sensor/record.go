// Package sensor turns raw broker payloads into sensor records.
//
// The pipeline is three steps, each usable on its own:
//
//	text := sensor.Printable(payload)     // drop non-printable bytes
//	if !sensor.LooksLikeObject(text) {    // cheap shape gate
//	    ...
//	}
//	rec, err := parser.Parse(text)        // bounded JSON parse
package sensor

// Record is one sensor reading as published by the producer. Fields missing
// from a message keep their zero value.
type Record struct {
	CO2Level           int     // ppm
	ComfortIndex       float32 // temperature-humidity index (THI)
	Temperature        float32
	Humidity           float32
	ComfortDescription string
	Timestamp          uint64 // Producer-supplied, opaque to us.

	// Valid is set only by a successful parse. An empty object still parses
	// successfully, so Valid does not imply any field was present.
	Valid bool
}

// JSON keys recognised in a payload.
const (
	KeyCO2          = "co2"
	KeyComfortIndex = "thi"
	KeyTemperature  = "temperature"
	KeyHumidity     = "humidity"
	KeyComfortLevel = "comfort_level"
	KeyTimestamp    = "timestamp"
)
