package ntp

import (
	"errors"
	"io"
	"net"
	"time"

	lntp "github.com/soypat/lneto/ntp"
)

// PacketSize is the size of an NTP packet without extensions.
const PacketSize = lntp.SizeHeader

// DefaultPort is the NTP server port.
const DefaultPort = "123"

// leapUnsynchronised marks a clock that has never been set (LI = 3).
const leapUnsynchronised lntp.LeapIndicator = 3

var (
	ErrShortPacket = errors.New("ntp: short packet")
	ErrBadMode     = errors.New("ntp: unexpected mode in reply")
	ErrKissOfDeath = errors.New("ntp: kiss-o'-death reply")
)

// deadliner is implemented by connections that support I/O deadlines.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// ConnExchanger runs SNTP over an already connected datagram transport.
type ConnExchanger struct {
	Conn io.ReadWriter
	// Timeout bounds the round trip if Conn supports deadlines.
	Timeout time.Duration

	buf [PacketSize]byte
}

// Exchange sends a client request and parses the reply's transmit timestamp.
func (e *ConnExchanger) Exchange() (time.Time, error) {
	if d, ok := e.Conn.(deadliner); ok && e.Timeout > 0 {
		d.SetDeadline(time.Now().Add(e.Timeout))
		defer d.SetDeadline(time.Time{})
	}

	frm, err := lntp.NewFrame(e.buf[:])
	if err != nil {
		return time.Time{}, err
	}
	frm.ClearHeader()
	frm.SetFlags(lntp.ModeClient, lntp.Version4, leapUnsynchronised)
	if _, err := e.Conn.Write(e.buf[:]); err != nil {
		return time.Time{}, errors.New("ntp write:" + err.Error())
	}

	n, err := e.Conn.Read(e.buf[:])
	if err != nil && err != io.EOF {
		return time.Time{}, errors.New("ntp read:" + err.Error())
	}
	return ParseReply(e.buf[:n])
}

// ParseReply validates a server reply and returns its transmit time.
// Timestamps are read in era 0, which wraps in February 2036.
func ParseReply(pkt []byte) (time.Time, error) {
	frm, err := lntp.NewFrame(pkt)
	if err != nil {
		return time.Time{}, ErrShortPacket
	}
	mode, _, _ := frm.Flags()
	if mode != lntp.ModeServer && mode != lntp.ModeBroadcast {
		return time.Time{}, ErrBadMode
	}
	if frm.Stratum() == lntp.StratumUnspecified {
		return time.Time{}, ErrKissOfDeath
	}
	return frm.TransmitTime().Time(), nil
}

// AppendReply appends a minimal server reply carrying t as the transmit time.
// It serves tests and local fake servers. Times outside era 0 are sent as the
// zero timestamp.
func AppendReply(dst []byte, t time.Time, stratum uint8) []byte {
	var pkt [PacketSize]byte
	frm, _ := lntp.NewFrame(pkt[:])
	frm.SetFlags(lntp.ModeServer, lntp.Version4, lntp.LeapNoWarning)
	frm.SetStratum(lntp.Stratum(stratum))
	ts, _ := lntp.TimestampFromTime(t)
	frm.SetTransmitTime(ts)
	return append(dst, pkt[:]...)
}

// DialExchanger opens a UDP socket to server. A missing port defaults to 123.
// The caller owns the returned connection.
func DialExchanger(server string, timeout time.Duration) (*ConnExchanger, net.Conn, error) {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, DefaultPort)
	}
	conn, err := net.DialTimeout("udp", server, timeout)
	if err != nil {
		return nil, nil, errors.New("ntp dial:" + err.Error())
	}
	return &ConnExchanger{Conn: conn, Timeout: timeout}, conn, nil
}
