package main

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"time"
)

// reading is the payload the monitor subscribes to. The JSON keys match
// the sensor.Key* constants.
type reading struct {
	CO2          int     `json:"co2"`
	THI          float64 `json:"thi"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	ComfortLevel string  `json:"comfort_level"`
	Timestamp    uint64  `json:"timestamp"`
}

// thi is the temperature-humidity index for t in °C and h in %RH.
func thi(t, h float64) float64 {
	return 0.81*t + 0.01*h*(0.99*t-14.3) + 46.3
}

// comfortLevel names the usual THI bands.
func comfortLevel(index float64) string {
	switch {
	case index < 55:
		return "cold"
	case index < 60:
		return "chilly"
	case index < 65:
		return "neutral"
	case index < 70:
		return "comfortable"
	case index < 75:
		return "warm"
	case index < 80:
		return "hot"
	case index < 85:
		return "very hot"
	default:
		return "sweltering"
	}
}

// generator produces a slow random walk of plausible indoor readings.
type generator struct {
	rnd  *rand.Rand
	co2  float64
	temp float64
	hum  float64
}

func newGenerator(seed uint64) *generator {
	return &generator{
		rnd:  rand.New(rand.NewPCG(seed, seed^0x5eed)),
		co2:  600,
		temp: 22,
		hum:  50,
	}
}

func (g *generator) next(now time.Time) reading {
	g.co2 = clamp(g.co2+g.rnd.NormFloat64()*25, 400, 2500)
	g.temp = clamp(g.temp+g.rnd.NormFloat64()*0.2, 10, 35)
	g.hum = clamp(g.hum+g.rnd.NormFloat64(), 20, 90)

	index := round1(thi(g.temp, g.hum))
	return reading{
		CO2:          int(math.Round(g.co2)),
		THI:          index,
		Temperature:  round1(g.temp),
		Humidity:     round1(g.hum),
		ComfortLevel: comfortLevel(index),
		Timestamp:    uint64(now.Unix()),
	}
}

func (r reading) marshal() ([]byte, error) {
	return json.Marshal(r)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
