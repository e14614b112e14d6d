package ntp

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/harveysanders/sensorclock/mqttmonitor/clock"
	lntp "github.com/soypat/lneto/ntp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jst = 9 * time.Hour

var serverTime = time.Date(2025, 7, 9, 3, 4, 5, 0, time.UTC) // 12:04:05 JST

type fakeRTC struct {
	now     time.Time
	readErr error
	writes  []time.Time
}

func (r *fakeRTC) ReadTime() (time.Time, error) { return r.now, r.readErr }

func (r *fakeRTC) SetTime(t time.Time) error {
	r.writes = append(r.writes, t)
	r.now = t
	return nil
}

func fixedExchange(t time.Time) ExchangeFunc {
	return func() (time.Time, error) { return t, nil }
}

func newTestClient(ex Exchanger, rtc RTC) (*Client, clock.Mock) {
	mock := clock.NewMock(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewClient(ex, Config{
		Offset:   jst,
		Interval: time.Minute,
		Clock:    mock,
		RTC:      rtc,
	}), mock
}

func TestUnsyncedEpochCountsUpFromOffset(t *testing.T) {
	c, mock := newTestClient(nil, nil)

	assert.False(t, c.IsSet())
	assert.Equal(t, int64(9*3600), c.Epoch())

	mock.Add(42 * time.Second)
	assert.Equal(t, int64(9*3600+42), c.Epoch())
	assert.Equal(t, "09:00:42", c.FormattedTime())
}

func TestUpdateSyncsOnFirstCallThenHonoursInterval(t *testing.T) {
	calls := 0
	ex := ExchangeFunc(func() (time.Time, error) {
		calls++
		return serverTime, nil
	})
	c, mock := newTestClient(ex, nil)

	synced, err := c.Update()
	require.NoError(t, err)
	assert.True(t, synced)
	assert.True(t, c.IsSet())

	mock.Add(30 * time.Second)
	synced, err = c.Update()
	require.NoError(t, err)
	assert.False(t, synced)

	mock.Add(30 * time.Second)
	synced, err = c.Update()
	require.NoError(t, err)
	assert.True(t, synced)
	assert.Equal(t, 2, calls)
}

func TestBrokenDownTime(t *testing.T) {
	c, mock := newTestClient(fixedExchange(serverTime), nil)
	require.NoError(t, c.ForceUpdate())

	assert.Equal(t, serverTime.Add(jst).Unix(), c.Epoch())
	assert.Equal(t, 12, c.Hours())
	assert.Equal(t, 4, c.Minutes())
	assert.Equal(t, 5, c.Seconds())
	assert.Equal(t, "12:04:05", c.FormattedTime())

	mock.Add(12*time.Hour + 56*time.Minute)
	assert.Equal(t, 1, c.Hours())
	assert.Equal(t, 0, c.Minutes())
	assert.Equal(t, "01:00:05", c.FormattedTime())
}

func TestNowUsesOffsetZone(t *testing.T) {
	c, _ := newTestClient(fixedExchange(serverTime), nil)
	require.NoError(t, c.ForceUpdate())

	now := c.Now()
	assert.True(t, now.Equal(serverTime))
	assert.Equal(t, 12, now.Hour())
}

func TestForceUpdateFailureKeepsPreviousTime(t *testing.T) {
	fail := false
	ex := ExchangeFunc(func() (time.Time, error) {
		if fail {
			return time.Time{}, errors.New("timeout")
		}
		return serverTime, nil
	})
	c, _ := newTestClient(ex, nil)
	require.NoError(t, c.ForceUpdate())
	before := c.Epoch()

	fail = true
	err := c.ForceUpdate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Equal(t, before, c.Epoch())
}

func TestForceUpdateWithoutExchanger(t *testing.T) {
	c, _ := newTestClient(nil, nil)
	assert.ErrorIs(t, c.ForceUpdate(), ErrNoExchanger)
}

func TestSyncWithRetries(t *testing.T) {
	attempts := 0
	ex := ExchangeFunc(func() (time.Time, error) {
		attempts++
		if attempts < 3 {
			return time.Time{}, errors.New("no reply")
		}
		return serverTime, nil
	})
	c, _ := newTestClient(ex, nil)

	var slept []time.Duration
	err := c.SyncWithRetries(10, time.Second, func(d time.Duration) { slept = append(slept, d) })
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, slept)
}

func TestSyncWithRetriesExhausted(t *testing.T) {
	attempts := 0
	ex := ExchangeFunc(func() (time.Time, error) {
		attempts++
		return time.Time{}, errors.New("no reply")
	})
	c, _ := newTestClient(ex, nil)

	slept := 0
	err := c.SyncWithRetries(4, time.Second, func(time.Duration) { slept++ })
	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, 3, slept)
	assert.False(t, c.IsSet())
}

func TestSyncWritesRTC(t *testing.T) {
	rtc := &fakeRTC{}
	c, _ := newTestClient(fixedExchange(serverTime), rtc)

	require.NoError(t, c.ForceUpdate())
	require.Len(t, rtc.writes, 1)
	assert.True(t, rtc.writes[0].Equal(serverTime))
}

func TestSeedFromRTC(t *testing.T) {
	rtc := &fakeRTC{now: serverTime}
	c, mock := newTestClient(nil, rtc)

	require.NoError(t, c.SeedFromRTC())
	assert.False(t, c.IsSet())
	assert.Equal(t, "12:04:05", c.FormattedTime())

	mock.Add(time.Minute)
	assert.Equal(t, 5, c.Minutes())
}

func TestSeedFromRTCRejectsImplausibleTime(t *testing.T) {
	rtc := &fakeRTC{now: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}
	c, _ := newTestClient(nil, rtc)

	require.Error(t, c.SeedFromRTC())
	assert.Equal(t, int64(9*3600), c.Epoch())
}

func TestSeedFromRTCWithoutRTC(t *testing.T) {
	c, _ := newTestClient(nil, nil)
	assert.Error(t, c.SeedFromRTC())
}

func TestParseReply(t *testing.T) {
	want := time.Date(2025, 7, 9, 3, 4, 5, 250_000_000, time.UTC)

	got, err := ParseReply(AppendReply(nil, want, 2))
	require.NoError(t, err)
	assert.WithinDuration(t, want, got, time.Microsecond)
}

func TestParseReplyErrors(t *testing.T) {
	reply := AppendReply(nil, serverTime, 2)

	_, err := ParseReply(reply[:20])
	assert.ErrorIs(t, err, ErrShortPacket)

	kod := AppendReply(nil, serverTime, 0)
	_, err = ParseReply(kod)
	assert.ErrorIs(t, err, ErrKissOfDeath)

	clientMode := AppendReply(nil, serverTime, 2)
	clientMode[0] = 0xe3
	_, err = ParseReply(clientMode)
	assert.ErrorIs(t, err, ErrBadMode)

	bcast := AppendReply(nil, serverTime, 2)
	frm, err := lntp.NewFrame(bcast)
	require.NoError(t, err)
	frm.SetFlags(lntp.ModeBroadcast, lntp.Version4, lntp.LeapNoWarning)
	got, err := ParseReply(bcast)
	require.NoError(t, err)
	assert.True(t, got.Equal(serverTime))
}

func TestAppendReplyLayout(t *testing.T) {
	reply := AppendReply([]byte{0xaa}, serverTime, 3)
	require.Len(t, reply, 1+PacketSize)
	assert.Equal(t, byte(0xaa), reply[0])

	frm, err := lntp.NewFrame(reply[1:])
	require.NoError(t, err)
	mode, _, leap := frm.Flags()
	assert.Equal(t, lntp.ModeServer, mode)
	assert.Equal(t, lntp.LeapNoWarning, leap)
	assert.Equal(t, lntp.Stratum(3), frm.Stratum())
	// Seconds since 1900 for the server time.
	assert.Equal(t, uint32(serverTime.Unix()+2208988800), frm.TransmitTime().Seconds())
}

func TestConnExchanger(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	requests := make(chan []byte, 1)
	go func() {
		req := make([]byte, PacketSize)
		n, err := server.Read(req)
		if err != nil {
			return
		}
		requests <- req[:n]
		server.Write(AppendReply(nil, serverTime, 1))
	}()

	ex := &ConnExchanger{Conn: client, Timeout: time.Second}
	got, err := ex.Exchange()
	require.NoError(t, err)
	assert.True(t, got.Equal(serverTime))

	req := <-requests
	require.Len(t, req, PacketSize)
	assert.Equal(t, byte(0xe3), req[0])

	frm, err := lntp.NewFrame(req)
	require.NoError(t, err)
	mode, version, leap := frm.Flags()
	assert.Equal(t, lntp.ModeClient, mode)
	assert.Equal(t, uint8(lntp.Version4), version)
	assert.Equal(t, leapUnsynchronised, leap)
	assert.True(t, frm.TransmitTime().IsZero())
}

func TestConnExchangerTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		req := make([]byte, PacketSize)
		server.Read(req) // Never answer.
	}()

	ex := &ConnExchanger{Conn: client, Timeout: 50 * time.Millisecond}
	_, err := ex.Exchange()
	assert.Error(t, err)
}

func TestUpdateBacksOffAfterFailure(t *testing.T) {
	calls := 0
	fail := true
	ex := ExchangeFunc(func() (time.Time, error) {
		calls++
		if fail {
			return time.Time{}, errors.New("no route")
		}
		return serverTime, nil
	})
	mock := clock.NewMock(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewClient(ex, Config{Offset: jst, Interval: time.Minute, Backoff: 5 * time.Second, Clock: mock})

	_, err := c.Update()
	require.Error(t, err)

	mock.Add(time.Second)
	synced, err := c.Update()
	require.NoError(t, err)
	assert.False(t, synced)
	assert.Equal(t, 1, calls)

	fail = false
	mock.Add(4 * time.Second)
	synced, err = c.Update()
	require.NoError(t, err)
	assert.True(t, synced)
	assert.Equal(t, 2, calls)
}
