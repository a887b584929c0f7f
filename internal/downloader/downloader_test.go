package downloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheFilePath(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	path := CacheFilePath("data", "ETHUSDT", "1m", start, end)
	assert.Equal(t, filepath.Join("data", "ETHUSDT_1m_2024-01-01_2024-02-01.csv"), path)
}

func TestLoadCandlesCSV(t *testing.T) {
	content := "open_time,open,high,low,close,volume,close_time\n" +
		"1704067200000,2300.5,2310,2295.25,2305,150.7,1704067259999\n" +
		"1704067260000,2305,2320,2300,2318.75,98.2,1704067319999\n"
	path := filepath.Join(t.TempDir(), "klines.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	candles, err := LoadCandlesCSV(path)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	first := candles[0]
	assert.Equal(t, time.UnixMilli(1704067200000).UTC(), first.OpenTime)
	assert.Equal(t, "2300.5", first.Open.String())
	assert.Equal(t, "2310", first.High.String())
	assert.Equal(t, "2295.25", first.Low.String())
	assert.Equal(t, "2305", first.Close.String())
	assert.Equal(t, "150.7", first.Volume.String())

	assert.Equal(t, "2318.75", candles[1].Close.String())
}

func TestLoadCandlesCSVMalformedRow(t *testing.T) {
	content := "open_time,open,high,low,close,volume,close_time\n" +
		"not-a-number,2300,2310,2295,2305,150,1704067259999\n"
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadCandlesCSV(path)
	assert.Error(t, err)
}

func TestLoadCandlesCSVMissingFile(t *testing.T) {
	_, err := LoadCandlesCSV(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}
