//go:build tinygo

// Package cyw43439 brings up WiFi on the Raspberry Pi Pico W's CYW43439 chip
// and exposes the lneto stack the monitor needs: DHCP, DNS, a reusable TCP
// connection for the broker and SNTP.
//
// The setup code is adapted from the examples in the soypat/cyw43439 repository:
// https://github.com/soypat/cyw43439/tree/main/examples/common
package cyw43439

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/harveysanders/sensorclock/mqttmonitor/mqtt"
	"github.com/soypat/cyw43439"
	"github.com/soypat/lneto/tcp"
	"github.com/soypat/lneto/x/xnet"
)

const (
	mtu = cyw43439.MTU
	// tcpBufSize is MTU minus the Ethernet, IPv4 and TCP headers.
	tcpBufSize = 2030
	pollTime   = 5 * time.Millisecond
)

var errNotJoined = errors.New("cyw43439: not joined")

// StackConfig configures the lneto stack.
type StackConfig struct {
	// Hostname is used for DHCP requests.
	Hostname string
	// Logger for stack operations.
	Logger *slog.Logger
	// RandSeed is an optional random seed for the stack's PRNG.
	RandSeed int64
}

// Stack wraps the lneto StackAsync and CYW43439 device for network operations.
type Stack struct {
	s        xnet.StackAsync
	dev      *cyw43439.Device
	log      *slog.Logger
	sendbuf  []byte
	hostname string
	seed     int64
	start    time.Time
	joined   bool

	conn tcp.Conn
}

// NewStack initialises the CYW43439 device. Call Join to get on a network.
func NewStack(cfg StackConfig) (*Stack, error) {
	if cfg.Hostname == "" {
		return nil, errors.New("empty hostname")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}

	start := time.Now()
	dev := cyw43439.NewPicoWDevice()
	dev.SetLogger(logger)

	logger.Info("cyw43439:init")
	if err := dev.Init(cyw43439.DefaultWifiConfig()); err != nil {
		return nil, errors.New("wifi init failed:" + err.Error())
	}
	logger.Info("cyw43439:Init", slog.Duration("duration", time.Since(start)))

	s := &Stack{
		dev:      dev,
		log:      logger,
		sendbuf:  make([]byte, mtu),
		hostname: cfg.Hostname,
		seed:     cfg.RandSeed,
		start:    start,
	}
	err := s.conn.Configure(tcp.ConnConfig{
		RxBuf:             make([]byte, tcpBufSize),
		TxBuf:             make([]byte, tcpBufSize),
		TxPacketQueueSize: 3,
	})
	if err != nil {
		return nil, errors.New("tcp configure:" + err.Error())
	}
	return s, nil
}

// Join joins the network, making at most attempts tries with delay between
// them. Zero attempts retries forever. On success the lneto stack is reset
// with the chip's hardware address.
func (s *Stack) Join(ssid, pass string, attempts int, delay time.Duration) error {
	if len(pass) == 0 {
		s.log.Info("wifi:joining-open", slog.String("ssid", ssid))
	} else {
		s.log.Info("wifi:joining-wpa2", slog.String("ssid", ssid), slog.Int("passlen", len(pass)))
	}

	var err error
	for i := 0; attempts == 0 || i < attempts; i++ {
		if err = s.dev.JoinWPA2(ssid, pass); err == nil {
			break
		}
		s.log.Error("wifi:join-failed", slog.Int("attempt", i+1), slog.String("err", err.Error()))
		if attempts == 0 || i < attempts-1 {
			time.Sleep(delay)
		}
	}
	if err != nil {
		return errors.New("wifi join:" + err.Error())
	}

	mac, err := s.dev.HardwareAddr6()
	if err != nil {
		return errors.New("get hardware address:" + err.Error())
	}
	s.log.Info("wifi:joined", slog.String("mac", net.HardwareAddr(mac[:]).String()))

	err = s.s.Reset(xnet.StackConfig{
		Hostname:        s.hostname,
		MaxTCPConns:     1,
		RandSeed:        time.Since(s.start).Nanoseconds() ^ s.seed,
		HardwareAddress: mac,
		MTU:             mtu,
	})
	if err != nil {
		return errors.New("stack reset:" + err.Error())
	}
	s.dev.RecvEthHandle(func(pkt []byte) error {
		return s.s.Demux(pkt, 0)
	})
	s.joined = true
	return nil
}

// SetupWithDHCP requests an IPv4 lease and points the stack at the router.
func (s *Stack) SetupWithDHCP() (*xnet.DHCPResults, error) {
	if !s.joined {
		return nil, errNotJoined
	}
	rstack := s.s.StackRetrying(50 * time.Millisecond)

	s.log.Info("DHCP:starting")
	results, err := rstack.DoDHCPv4([4]byte{}, 3*time.Second, 3)
	if err != nil {
		return nil, errors.New("dhcp failed:" + err.Error())
	}
	if err = s.s.AssimilateDHCPResults(results); err != nil {
		return nil, errors.New("assimilate dhcp:" + err.Error())
	}

	gatewayHW, err := rstack.DoResolveHardwareAddress6(results.Router, 500*time.Millisecond, 4)
	if err != nil {
		return nil, errors.New("resolve gateway:" + err.Error())
	}
	s.s.SetGateway6(gatewayHW)

	s.log.Info("DHCP complete",
		slog.String("ourIP", results.AssignedAddr.String()),
		slog.String("router", results.Router.String()),
		slog.Uint64("lease_sec", uint64(results.TLease)),
	)
	return results, nil
}

// RecvAndSend processes one incoming and one outgoing packet and reports
// how many of each were handled.
func (s *Stack) RecvAndSend() (send, recv int, err error) {
	gotPacket, errRecv := s.dev.PollOne()
	if gotPacket {
		recv = 1
	}
	if errRecv != nil {
		s.log.Error("RecvAndSend:PollOne", slog.String("err", errRecv.Error()))
	}

	send, err = s.s.Encapsulate(s.sendbuf, -1, 0)
	if err != nil {
		s.log.Error("RecvAndSend:Encapsulate", slog.Int("plen", send), slog.String("err", err.Error()))
	} else {
		err = errRecv
	}
	if send == 0 {
		return send, recv, err
	}

	err = s.dev.SendEth(s.sendbuf[:send])
	if err != nil {
		s.log.Error("RecvAndSend:SendEth", slog.Int("plen", send), slog.String("err", err.Error()))
	}
	return send, recv, err
}

// PollForever moves packets between the chip and the stack. Run it in its
// own goroutine once Join has succeeded.
func (s *Stack) PollForever() {
	for {
		send, recv, _ := s.RecvAndSend()
		if send == 0 && recv == 0 {
			time.Sleep(pollTime)
		}
	}
}

// LookupIP parses host as an address or resolves it over DNS.
func (s *Stack) LookupIP(host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr, nil
	}
	if !s.joined {
		return netip.Addr{}, errNotJoined
	}
	addrs, err := s.s.StackRetrying(pollTime).DoLookupIP(host, 5*time.Second, 3)
	if err != nil {
		return netip.Addr{}, errors.New("dns lookup for " + host + ": " + err.Error())
	}
	if len(addrs) == 0 {
		return netip.Addr{}, errors.New("dns lookup for " + host + ": no addresses returned")
	}
	return addrs[0], nil
}

// DialTCP connects the stack's single TCP connection to addr (host:port),
// closing any previous session first. The returned conn is only valid until
// the next DialTCP.
func (s *Stack) DialTCP(addr string) (io.ReadWriteCloser, error) {
	if !s.joined {
		return nil, errNotJoined
	}
	host, portStr, err := mqtt.SplitHostPort(addr)
	if err != nil {
		return nil, errors.New("parsing host:port from " + addr + ": " + err.Error())
	}
	port := mqtt.ParsePort(portStr)
	if port == 0 {
		return nil, errors.New("invalid port in " + addr)
	}
	ip, err := s.LookupIP(host)
	if err != nil {
		return nil, err
	}
	if !s.conn.State().IsClosed() {
		s.closeConn("redial")
	}

	localPort := uint16(s.s.Prand32()>>17) + 1024
	s.log.Info("socket:dialing", slog.String("addr", addr), slog.Uint64("localPort", uint64(localPort)))
	err = s.s.StackRetrying(pollTime).DoDialTCP(&s.conn, localPort, netip.AddrPortFrom(ip, port), 10*time.Second, 3)
	if err != nil {
		s.closeConn("dial failed: " + err.Error())
		return nil, errors.New("tcp dial " + addr + ":" + err.Error())
	}
	s.log.Info("tcp:connected", slog.String("state", s.conn.State().String()))
	return &stackConn{Conn: &s.conn, stack: s}, nil
}

func (s *Stack) closeConn(reason string) {
	s.log.Info("tcpconn:closing", slog.String("reason", reason))
	s.conn.Close()
	for i := 0; i < 50 && !s.conn.State().IsClosed(); i++ {
		time.Sleep(100 * time.Millisecond)
	}
	s.conn.Abort()
}

// stackConn waits for the TCP close handshake so the connection can be
// redialled.
type stackConn struct {
	*tcp.Conn
	stack *Stack
}

func (c *stackConn) Close() error {
	c.stack.closeConn("session closed")
	return nil
}

// Prand32 returns a pseudo-random 32-bit number from the stack's PRNG.
func (s *Stack) Prand32() uint32 {
	return s.s.Prand32()
}

// Addr returns the current IP address of the stack.
func (s *Stack) Addr() netip.Addr {
	return s.s.Addr()
}
