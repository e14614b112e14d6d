package digiclock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	writes []string
	err    error
}

func (w *recordingWriter) SetString(s string) error {
	if w.err != nil {
		return w.err
	}
	w.writes = append(w.writes, s)
	return nil
}

const synced = SyncedAfter + 3600

func TestUpdaterWritesOncePerMinute(t *testing.T) {
	w := &recordingWriter{}
	u := NewUpdater(w, SyncedAfter)

	for _, step := range []struct {
		hour, minute int
		want         bool
	}{
		{hour: 9, minute: 10, want: true},
		{hour: 9, minute: 10, want: false},
		{hour: 9, minute: 11, want: true},
	} {
		wrote, err := u.Update(synced, step.hour, step.minute)
		require.NoError(t, err)
		assert.Equal(t, step.want, wrote)
	}

	assert.Equal(t, []string{"09:10", "09:11"}, w.writes)
	assert.Equal(t, 11, u.LastMinute())
}

func TestUpdaterIgnoresUnsyncedEpoch(t *testing.T) {
	w := &recordingWriter{}
	u := NewUpdater(w, SyncedAfter)

	for minute := 0; minute < 5; minute++ {
		wrote, err := u.Update(SyncedAfter-1, 0, minute)
		require.NoError(t, err)
		assert.False(t, wrote)
	}

	assert.Empty(t, w.writes)
	assert.Equal(t, -1, u.LastMinute())
}

func TestUpdaterThresholdIsInclusive(t *testing.T) {
	w := &recordingWriter{}
	u := NewUpdater(w, SyncedAfter)

	wrote, err := u.Update(SyncedAfter, 0, 0)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, []string{"00:00"}, w.writes)
}

func TestUpdaterSameMinuteDifferentHour(t *testing.T) {
	w := &recordingWriter{}
	u := NewUpdater(w, SyncedAfter)

	_, err := u.Update(synced, 9, 30)
	require.NoError(t, err)
	wrote, err := u.Update(synced, 10, 30)
	require.NoError(t, err)

	assert.False(t, wrote)
	assert.Equal(t, []string{"09:30"}, w.writes)
}

func TestUpdaterRetriesFailedWrite(t *testing.T) {
	w := &recordingWriter{err: errors.New("bus error")}
	u := NewUpdater(w, SyncedAfter)

	wrote, err := u.Update(synced, 23, 59)
	assert.Error(t, err)
	assert.False(t, wrote)
	assert.Equal(t, -1, u.LastMinute())

	w.err = nil
	wrote, err = u.Update(synced, 23, 59)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, []string{"23:59"}, w.writes)
}

func TestUpdaterAbsentUnit(t *testing.T) {
	u := NewUpdater(nil, SyncedAfter)
	assert.False(t, u.Enabled())

	wrote, err := u.Update(synced, 12, 0)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, -1, u.LastMinute())
}

func TestFormatHHMM(t *testing.T) {
	tests := []struct {
		hour, minute int
		want         string
	}{
		{0, 0, "00:00"},
		{7, 5, "07:05"},
		{23, 59, "23:59"},
		{12, 30, "12:30"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatHHMM(nil, tt.hour, tt.minute))
	}
}
