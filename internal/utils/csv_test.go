package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoSignalAgent/internal/domain"
)

func sampleBars() []domain.Bar {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return []domain.Bar{
		{Time: t0, Open: 100, High: 101.5, Low: 99.25, Close: 101, Volume: 12.5},
		{Time: t0.Add(time.Hour), Open: 101, High: 102, Low: 100.5, Close: 101.75, Volume: 8},
	}
}

func TestWriteBars(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBars(&buf, "BTCUSDT", "1h", sampleBars()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "open_time,symbol,interval,open,high,low,close,volume", lines[0])
	assert.Equal(t, "2024-05-01T00:00:00Z,BTCUSDT,1h,100,101.5,99.25,101,12.5", lines[1])
	assert.Equal(t, "2024-05-01T01:00:00Z,BTCUSDT,1h,101,102,100.5,101.75,8", lines[2])
}

func TestWriteBarsToCSV_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bars.csv")
	require.NoError(t, WriteBarsToCSV(path, "ETHUSDT", "4h", sampleBars()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ETHUSDT,4h,")
}
