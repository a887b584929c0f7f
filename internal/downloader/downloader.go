package downloader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"grid-trading-bot-go/internal/models"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// KlineDownloader fetches historical klines from Binance and caches them as
// CSV files for backtests.
type KlineDownloader struct {
	client *binance.Client
	logger *zap.SugaredLogger
}

// NewKlineDownloader creates a downloader. Klines are a public endpoint, no
// API key is needed.
func NewKlineDownloader(logger *zap.SugaredLogger) *KlineDownloader {
	return &KlineDownloader{
		client: binance.NewClient("", ""),
		logger: logger,
	}
}

// CacheFilePath returns the canonical cache location of a dataset inside
// dataDir.
func CacheFilePath(dataDir, symbol, interval string, startTime, endTime time.Time) string {
	name := fmt.Sprintf("%s_%s_%s_%s.csv",
		symbol, interval, startTime.Format("2006-01-02"), endTime.Format("2006-01-02"))
	return filepath.Join(dataDir, name)
}

// DownloadKlines downloads klines for the given range into filePath. When the
// file already exists the cached copy is used and no request is made.
func (d *KlineDownloader) DownloadKlines(ctx context.Context, symbol, interval, filePath string, startTime, endTime time.Time) error {
	if _, err := os.Stat(filePath); err == nil {
		d.logger.Infof("Using cached kline data: %s", filePath)
		return nil
	}

	d.logger.Infof("Downloading %s %s klines from %s to %s...",
		symbol, interval, startTime.Format("2006-01-02"), endTime.Format("2006-01-02"))

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(filePath), err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"open_time", "open", "high", "low", "close", "volume", "close_time"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for t := startTime; t.Before(endTime); {
		klines, err := d.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(t.UnixMilli()).
			EndTime(endTime.UnixMilli()).
			Limit(1000). // Binance returns at most 1000 klines per request
			Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to download klines: %w", err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			record := []string{
				strconv.FormatInt(k.OpenTime, 10),
				k.Open,
				k.High,
				k.Low,
				k.Close,
				k.Volume,
				strconv.FormatInt(k.CloseTime, 10),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}

		t = time.UnixMilli(klines[len(klines)-1].CloseTime + 1)
		d.logger.Debugf("Downloaded kline data up to %s", t.Format("2006-01-02 15:04:05"))

		// Throttle to stay clear of the public API rate limit.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	d.logger.Infof("Kline data saved to %s", filePath)
	return nil
}

// LoadCandlesCSV reads a cached kline CSV into candles, oldest first.
func LoadCandlesCSV(filePath string) ([]models.Candle, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open kline file %s: %w", filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil { // header
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var candles []models.Candle
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if len(record) < 6 {
			return nil, fmt.Errorf("malformed CSV record: %v", record)
		}

		openTime, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse open time %q: %w", record[0], err)
		}
		candle := models.Candle{OpenTime: time.UnixMilli(openTime).UTC()}
		fields := []*decimal.Decimal{&candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume}
		for i, field := range fields {
			value, err := decimal.NewFromString(record[i+1])
			if err != nil {
				return nil, fmt.Errorf("failed to parse kline field %q: %w", record[i+1], err)
			}
			*field = value
		}
		candles = append(candles, candle)
	}
	return candles, nil
}
