package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grid-trading-bot-go/internal/bot"
	"grid-trading-bot-go/internal/config"
	"grid-trading-bot-go/internal/downloader"
	"grid-trading-bot-go/internal/exchange"
	"grid-trading-bot-go/internal/logger"
	"grid-trading-bot-go/internal/models"
	"grid-trading-bot-go/internal/persistence"

	binance "github.com/adshao/go-binance/v2"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	modeFlag := flag.String("mode", "backtest", "trading mode: backtest, paper_trading or live")
	startDate := flag.String("start", "", "backtest start date (YYYY-MM-DD), overrides config")
	endDate := flag.String("end", "", "backtest end date (YYYY-MM-DD), overrides config")
	flag.Parse()

	// A default console logger until the real config is loaded.
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	if err := godotenv.Load(); err != nil {
		logger.S().Info("No .env file found, reading credentials from the environment.")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("Failed to load config file: %v", err)
	}
	if *startDate != "" {
		cfg.StartDate = *startDate
	}
	if *endDate != "" {
		cfg.EndDate = *endDate
	}

	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	tradingMode, err := models.TradingModeFromString(*modeFlag)
	if err != nil {
		logger.S().Fatalf("%v", err)
	}

	if err := run(cfg, tradingMode); err != nil {
		logger.S().Fatalf("Session failed: %v", err)
	}
}

func run(cfg *models.Config, tradingMode models.TradingMode) error {
	var ex exchange.Exchange
	if tradingMode != models.ModeBacktest {
		if tradingMode == models.ModePaper {
			// Paper trading places real orders against the spot testnet.
			binance.UseTestnet = true
		}
		apiKey := os.Getenv("BINANCE_API_KEY")
		secretKey := os.Getenv("BINANCE_SECRET_KEY")
		if tradingMode == models.ModeLive && (apiKey == "" || secretKey == "") {
			return fmt.Errorf("live trading requires BINANCE_API_KEY and BINANCE_SECRET_KEY")
		}
		ex = exchange.NewBinanceExchange(apiKey, secretKey, logger.S())
	}

	var repo persistence.StateRepository
	if cfg.DBPath != "" {
		var err error
		repo, err = persistence.NewBadgerRepository(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open state repository: %w", err)
		}
	}

	b, err := bot.New(cfg, tradingMode, ex, repo, logger.S())
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if tradingMode == models.ModeBacktest {
		candles, err := loadBacktestData(ctx, cfg)
		if err != nil {
			return err
		}
		b.LoadCandles(candles)
	}

	if err := b.Run(ctx); err != nil {
		return err
	}

	summary, orders := b.GeneratePerformanceReport()
	fmt.Println(summary)
	fmt.Println(orders)
	return nil
}

// loadBacktestData downloads (or reuses from cache) the configured kline
// range and parses it into candles.
func loadBacktestData(ctx context.Context, cfg *models.Config) ([]models.Candle, error) {
	if cfg.StartDate == "" || cfg.EndDate == "" {
		return nil, fmt.Errorf("backtest mode requires start_date and end_date")
	}
	startTime, err := time.Parse("2006-01-02", cfg.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", cfg.StartDate, err)
	}
	endTime, err := time.Parse("2006-01-02", cfg.EndDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", cfg.EndDate, err)
	}

	filePath := downloader.CacheFilePath(cfg.DataDir, cfg.Pair(), cfg.Timeframe, startTime, endTime)
	d := downloader.NewKlineDownloader(logger.S())
	if err := d.DownloadKlines(ctx, cfg.Pair(), cfg.Timeframe, filePath, startTime, endTime); err != nil {
		return nil, fmt.Errorf("failed to acquire backtest data: %w", err)
	}

	candles, err := downloader.LoadCandlesCSV(filePath)
	if err != nil {
		return nil, err
	}
	logger.S().Infof("Loaded %d candles for %s from %s.", len(candles), cfg.Pair(), filePath)
	return candles, nil
}
