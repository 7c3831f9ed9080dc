package holder

import (
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineRoundTrip(t *testing.T) {
	since := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	h := Holder{PID: 4242, Host: "build-01", Since: since}

	got, err := Parse(h.Line())
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, "pid 4242 on build-01 since 2024-03-15T09:30:00Z", got.String())
}

func TestParse_LegacyAndMissingHost(t *testing.T) {
	got, err := Parse("4242 2024-03-15T09:30:00Z\n")
	require.NoError(t, err)
	assert.Equal(t, 4242, got.PID)
	assert.Empty(t, got.Host)

	got, err = Parse(Holder{PID: 7}.Line())
	require.NoError(t, err)
	assert.Empty(t, got.Host)

	_, err = Parse("")
	assert.Error(t, err)
	_, err = Parse("abc host 2024-03-15T09:30:00Z")
	assert.Error(t, err)
}

func TestGone(t *testing.T) {
	host, err := os.Hostname()
	require.NoError(t, err)
	dead := func(int) bool { return false }
	alive := func(int) bool { return true }

	assert.True(t, Holder{PID: 4242, Host: host}.Gone(dead))
	assert.False(t, Holder{PID: 4242, Host: host}.Gone(alive))
	assert.False(t, Holder{PID: 4242, Host: host + "-elsewhere"}.Gone(dead), "other hosts are never judged")
	assert.False(t, Holder{PID: 4242}.Gone(dead), "unknown host is never judged")
	assert.False(t, Holder{Host: host}.Gone(dead))
}

func TestProcessAlive(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("process liveness is not checked on windows")
	}
	assert.True(t, ProcessAlive(os.Getpid()))

	cmd := exec.Command(os.Args[0], "-test.run=^$")
	require.NoError(t, cmd.Run())
	assert.False(t, ProcessAlive(cmd.Process.Pid), "exited and reaped child")
}
