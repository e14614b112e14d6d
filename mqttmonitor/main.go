//go:build tinygo

// Program mqttmonitor shows CO2 and comfort readings received over MQTT on a
// Pico W display and keeps an M5 Digi-Clock unit showing network time.
//
// Flash with secrets baked in:
//
//	tinygo flash -target=pico-w -ldflags="-X 'github.com/harveysanders/sensorclock/mqttmonitor/config.ssid=MyWiFi' -X 'github.com/harveysanders/sensorclock/mqttmonitor/config.pass=secret' -X 'github.com/harveysanders/sensorclock/mqttmonitor/config.broker=10.0.0.9:1883'" ./mqttmonitor
//
// Add -X 'main.panel=st7789' to drive an SPI ST7789 instead of the 16x2 LCD.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"machine"
	"time"

	"github.com/harveysanders/sensorclock/mqttmonitor/config"
	"github.com/harveysanders/sensorclock/mqttmonitor/cyw43439"
	"github.com/harveysanders/sensorclock/mqttmonitor/digiclock"
	"github.com/harveysanders/sensorclock/mqttmonitor/monitor"
	"github.com/harveysanders/sensorclock/mqttmonitor/mqtt"
	"github.com/harveysanders/sensorclock/mqttmonitor/ntp"
	"github.com/harveysanders/sensorclock/mqttmonitor/screen"
	"tinygo.org/x/drivers/hd44780i2c"
	"tinygo.org/x/drivers/pcf8563"
	"tinygo.org/x/drivers/st7789"
)

// panel selects the display: "lcd" or "st7789". Set via linker flags.
var panel = "lcd"

func main() {
	cfg := config.Default()
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	if err := cfg.Validate(); err != nil {
		printErrForever(logger, "config", slog.String("err", err.Error()))
	}

	// Grove-style I2C bus shared by the LCD, the Digi-Clock unit and the RTC.
	err := machine.I2C0.Configure(machine.I2CConfig{
		SDA: machine.GP4,
		SCL: machine.GP5,
	})
	if err != nil {
		printErrForever(logger, "configure I2C", slog.String("err", err.Error()))
	}

	scr, layout, err := configureScreen(machine.I2C0)
	if err != nil {
		printErrForever(logger, "configure screen", slog.String("err", err.Error()))
	}

	stack, err := cyw43439.NewStack(cyw43439.StackConfig{
		Hostname: cfg.WiFi.Hostname,
		Logger:   logger,
	})
	if err != nil {
		printErrForever(logger, "init wifi chip", slog.String("err", err.Error()))
	}

	rtc := pcf8563.New(machine.I2C0)
	clockUnit := digiclock.New(machine.I2C0)

	timeClient := ntp.NewClient(stack.NTPExchanger(cfg.NTP.Server, cfg.NTP.Timeout), ntp.Config{
		Offset:   cfg.NTP.Offset,
		Interval: cfg.NTP.Interval,
		Backoff:  cfg.MQTT.ReconnectDelay,
		RTC:      &rtc,
		Logger:   logger,
	})
	if err := timeClient.SeedFromRTC(); err != nil {
		logger.Warn("ntp:rtc-seed-skipped", slog.String("err", err.Error()))
	}

	broker := &mqtt.Client{
		IDPrefix: cfg.MQTT.ClientIDPrefix,
		Topic:    cfg.MQTT.Topic,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Timeout:  cfg.MQTT.Timeout,
		Rand:     stack.Prand32,
		Logger:   logger,
	}

	view := screen.NewView(scr, screen.ViewConfig{
		Layout:   layout,
		Interval: cfg.Screen.Alternation,
		Time:     timeClient,
		Link:     broker,
		Logger:   logger,
	})

	m := monitor.New(cfg, monitor.Deps{
		View:   view,
		Broker: broker,
		Dial: func(context.Context) (io.ReadWriteCloser, error) {
			return stack.DialTCP(cfg.MQTT.Broker)
		},
		Time: timeClient,
		Join: func(context.Context) (string, error) {
			if err := stack.Join(cfg.WiFi.SSID, cfg.WiFi.Password, cfg.WiFi.JoinAttempts, cfg.WiFi.JoinDelay); err != nil {
				return "", err
			}
			go stack.PollForever()
			results, err := stack.SetupWithDHCP()
			if err != nil {
				return "", err
			}
			return results.AssignedAddr.String(), nil
		},
		Clock:  &clockUnit,
		Logger: logger,
	})
	broker.OnMessage = m.HandleMessage

	ctx := context.Background()
	m.Setup(ctx)
	m.LogSubscription()
	m.Run(ctx)
}

// configureScreen sets up the selected display. For the LCD it tries the
// common backpack addresses (0x27, 0x3F).
func configureScreen(i2c *machine.I2C) (screen.Screen, screen.Layout, error) {
	if panel == "st7789" {
		machine.SPI0.Configure(machine.SPIConfig{
			Frequency: 62_500_000,
			SCK:       machine.GP18,
			SDO:       machine.GP19,
			Mode:      0,
		})
		display := st7789.New(machine.SPI0, machine.GP20, machine.GP16, machine.GP17, machine.GP22)
		display.Configure(st7789.Config{
			Width:        135,
			Height:       240,
			Rotation:     st7789.ROTATION_90,
			RowOffset:    40,
			ColumnOffset: 53,
		})
		return screen.NewTFT(&display), screen.PixelLayout(), nil
	}

	for _, addr := range []uint8{0x27, 0x3F} {
		dev := hd44780i2c.New(i2c, addr)
		err := dev.Configure(hd44780i2c.Config{
			Width:  16,
			Height: 2,
		})
		if err != nil {
			continue
		}
		dev.BacklightOn(true)
		dev.ClearDisplay()
		return screen.NewLCD(&dev, 16, 2), screen.LCDLayout(), nil
	}
	return nil, screen.Layout{}, errors.New("LCD not found on addresses: 0x27, 0x3f")
}

// printErrForever logs msg once a second. It blocks forever, so the serial
// monitor sees the error even if it attaches late.
func printErrForever(logger *slog.Logger, msg string, args ...any) {
	for {
		logger.Error(msg, args...)
		time.Sleep(time.Second)
	}
}
