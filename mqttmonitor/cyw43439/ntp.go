//go:build tinygo

package cyw43439

import (
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/harveysanders/sensorclock/mqttmonitor/ntp"
)

// NTPExchanger returns an ntp.Exchanger that queries server through the
// stack. The server name is resolved on first use and cached.
func (s *Stack) NTPExchanger(server string, timeout time.Duration) ntp.Exchanger {
	var addr netip.Addr
	return ntp.ExchangeFunc(func() (time.Time, error) {
		if !s.joined {
			return time.Time{}, errNotJoined
		}
		if !addr.IsValid() {
			ip, err := s.LookupIP(server)
			if err != nil {
				return time.Time{}, err
			}
			addr = ip
			s.log.Info("ntp:resolved", slog.String("server", server), slog.String("addr", addr.String()))
		}
		offset, err := s.s.StackRetrying(pollTime).DoNTP(addr, timeout, 1)
		if err != nil {
			addr = netip.Addr{} // Re-resolve on the next attempt.
			return time.Time{}, errors.New("ntp request:" + err.Error())
		}
		return time.Now().Add(offset), nil
	})
}
