//go:build tinygo

// Program bringup checks the monitor's hardware before flashing the full
// firmware. It probes the character LCD, the Digi-Clock unit and the RTC on
// I2C0, then loops: a potentiometer on ADC0 sets the clock's brightness, the
// LCD shows the reading and the RTC time, and an LED on GP15 breathes as a
// heartbeat.
//
//	tinygo flash -target=pico-w ./bringup
package main

import (
	"log/slog"
	"machine"
	"strconv"
	"time"

	"github.com/harveysanders/sensorclock/mqttmonitor/digiclock"
	"github.com/harveysanders/sensorclock/mqttmonitor/screen"
	"tinygo.org/x/drivers/hd44780i2c"
	"tinygo.org/x/drivers/pcf8563"
)

func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	err := machine.I2C0.Configure(machine.I2CConfig{
		SDA: machine.GP4,
		SCL: machine.GP5,
	})
	if err != nil {
		printErrForever(logger, "could not configure I2C", slog.String("err", err.Error()))
	}

	// Try common addresses (0x27 then 0x3F).
	var lcd *screen.LCD
	for _, addr := range []uint8{0x27, 0x3F} {
		logger.Info("lcd:probe", slog.Int("addr", int(addr)))
		dev := hd44780i2c.New(machine.I2C0, addr)
		if err := dev.Configure(hd44780i2c.Config{Width: 16, Height: 2}); err != nil {
			continue
		}
		dev.BacklightOn(true)
		dev.ClearDisplay()
		lcd = screen.NewLCD(&dev, 16, 2)
		logger.Info("lcd:found", slog.Int("addr", int(addr)))
		break
	}
	if lcd == nil {
		printErrForever(logger, "LCD not found at 0x27/0x3F")
	}

	clockUnit := digiclock.New(machine.I2C0)
	clockOK := false
	if err := clockUnit.Configure(); err != nil {
		logger.Error("digiclock:probe-failed", slog.String("err", err.Error()))
	} else {
		fw, _ := clockUnit.FirmwareVersion()
		logger.Info("digiclock:found", slog.Int("firmware", int(fw)))
		clockUnit.SetString("88:88")
		clockOK = true
	}

	rtc := pcf8563.New(machine.I2C0)
	if t, err := rtc.ReadTime(); err != nil {
		logger.Error("rtc:read-failed", slog.String("err", err.Error()))
	} else {
		logger.Info("rtc:time", slog.String("time", t.Format(time.DateTime)))
	}

	machine.InitADC()
	pot := machine.ADC{Pin: machine.ADC0}
	pot.Configure(machine.ADCConfig{})

	heartbeat, err := newHeartbeat(machine.GP15)
	if err != nil {
		logger.Warn("heartbeat:disabled", slog.String("err", err.Error()))
	}

	// Preallocated so the loop does not grow the heap.
	printBuf := make([]byte, 0, 16)
	var lastLevel uint8 = 0xff
	for tick := 0; ; tick++ {
		level := digiclock.ScaleBrightness(pot.Get())
		if clockOK && level != lastLevel {
			if err := clockUnit.SetBrightness(level); err != nil {
				logger.Warn("digiclock:brightness-failed", slog.String("err", err.Error()))
			}
			lastLevel = level
		}

		lcd.Fill(screen.Black)
		printBuf = append(printBuf[:0], "Bright: "...)
		printBuf = strconv.AppendUint(printBuf, uint64(level), 10)
		if !clockOK {
			printBuf = append(printBuf, " NC"...)
		}
		lcd.SetCursor(0, 0)
		lcd.Print(string(printBuf))

		printBuf = append(printBuf[:0], "RTC "...)
		if t, err := rtc.ReadTime(); err == nil {
			printBuf = t.AppendFormat(printBuf, time.TimeOnly)
		} else {
			printBuf = append(printBuf, "ERR"...)
		}
		lcd.SetCursor(0, 1)
		lcd.Print(string(printBuf))
		lcd.Display()

		heartbeat.step(tick)
		time.Sleep(50 * time.Millisecond)
	}
}

type pwmChannel interface {
	Set(channel uint8, value uint32)
	Top() uint32
}

// heartbeat pulses an LED with PWM. GP14/GP15 are driven by PWM slice 7.
type heartbeat struct {
	pwm pwmChannel
	ch  uint8
}

func newHeartbeat(led machine.Pin) (*heartbeat, error) {
	pwm := machine.PWM7
	// RP2040 PWM cannot run slower than ~7 Hz, so a 200 Hz carrier is
	// modulated in software.
	err := pwm.Configure(machine.PWMConfig{
		Period: uint64(5 * time.Millisecond),
	})
	if err != nil {
		return nil, err
	}
	ch, err := pwm.Channel(led)
	if err != nil {
		return nil, err
	}
	return &heartbeat{pwm: pwm, ch: ch}, nil
}

// step sets the duty for loop iteration tick: a ramp up and down over 40
// iterations.
func (h *heartbeat) step(tick int) {
	if h == nil {
		return
	}
	phase := uint32(tick % 40)
	if phase >= 20 {
		phase = 39 - phase
	}
	h.pwm.Set(h.ch, h.pwm.Top()*phase/19)
}

func printErrForever(logger *slog.Logger, msg string, args ...any) {
	for {
		logger.Error(msg, args...)
		time.Sleep(time.Second)
	}
}
