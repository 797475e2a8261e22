package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCPUPercentFromTop_Classic(t *testing.T) {
	out := "top - 10:00:00 up 1 day\n%Cpu(s):  3.2 us,  1.1 sy,  0.0 ni, 95.5 id,  0.2 wa\nTasks: 120 total\n"
	p := parseCPUPercentFromTop(out)
	require.NotNil(t, p)
	assert.InDelta(t, 4.5, *p, 0.01)
}

func TestParseCPUPercentFromTop_Busybox(t *testing.T) {
	out := "Mem: 1024 512 512\nCPU:  0% usr  2% sys  0% nic 97% idle  1% io  0% irq  0% sirq\n"
	p := parseCPUPercentFromTop(out)
	require.NotNil(t, p)
	assert.InDelta(t, 3.0, *p, 0.01)
}

func TestParseCPUPercentFromTop_Unparseable(t *testing.T) {
	assert.Nil(t, parseCPUPercentFromTop("garbage output\nno cpu line here\n"))
}

func TestParseRAMPercentFromFree(t *testing.T) {
	out := "              total        used        free      shared  buff/cache   available\n" +
		"Mem:           1000         250         500           0         250         700\n" +
		"Swap:             0           0           0\n"
	p := parseRAMPercentFromFree(out)
	require.NotNil(t, p)
	assert.InDelta(t, 25.0, *p, 0.01)
}

func TestParseRAMPercentFromFree_MissingMemLine(t *testing.T) {
	assert.Nil(t, parseRAMPercentFromFree("Swap: 0 0 0\n"))
}

func TestParseDiskPercentFromDF(t *testing.T) {
	out := "Filesystem     512-blocks      Used Available Capacity Mounted on\n" +
		"/dev/sda1        20971520   8388608  12582912      40% /\n"
	p := parseDiskPercentFromDF(out)
	require.NotNil(t, p)
	assert.InDelta(t, 40.0, *p, 0.01)
}

func TestClampPercent(t *testing.T) {
	assert.Equal(t, 0.0, clampPercent(-5))
	assert.Equal(t, 100.0, clampPercent(150))
	assert.Equal(t, 42.5, clampPercent(42.5))
}
