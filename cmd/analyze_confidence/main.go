package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"pinbar-signal-bot/config"
	"pinbar-signal-bot/internal/database"
	"pinbar-signal-bot/internal/models"
)

const signalLimit = 1000

type ConfidenceBucket struct {
	MinConf      float64
	MaxConf      float64
	TotalSignals int
	Bullish      int
	Bearish      int
	TotalSize    float64
	TotalLev     int
	TotalRR      float64
	AvgSize      float64
	AvgLeverage  float64
	AvgRR        float64
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Printf("Failed to open %s store: %v\n", cfg.StoreConfig.Driver, err)
		os.Exit(1)
	}
	defer store.Close()

	signals, err := store.RecentSignals(ctx, signalLimit)
	if err != nil {
		fmt.Printf("Query failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("🧪 SIGNAL CONFIDENCE DISTRIBUTION")
	fmt.Println(strings.Repeat("=", 80))

	if len(signals) == 0 {
		fmt.Println("\n❌ No signals found in the store.")
		fmt.Printf("   Driver: %s\n", cfg.StoreConfig.Driver)
		return
	}

	fmt.Printf("\n📊 Analyzing %d signals...\n\n", len(signals))
	printBuckets(bucketize(signals))
	printTimeframes(signals)
}

func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	switch cfg.StoreConfig.Driver {
	case "postgres":
		pg := cfg.StoreConfig.Postgres
		db, err := database.NewDB(ctx, database.Config{
			Host:     pg.Host,
			Port:     pg.Port,
			User:     pg.User,
			Password: pg.Password,
			Database: pg.Database,
			SSLMode:  pg.SSLMode,
			MaxConns: 2,
		}, nil)
		if err != nil {
			return nil, err
		}
		return database.NewPostgresStore(db), nil
	case "sqlite":
		return database.NewSQLiteStore(cfg.StoreConfig.SQLitePath)
	default:
		return nil, fmt.Errorf("driver %q keeps no history between runs", cfg.StoreConfig.Driver)
	}
}

// bucketize splits signals by confidence. Confidence is clamped to
// [0.3, 0.9], so the last bucket is closed on the right.
func bucketize(signals []models.TradingSignal) []ConfidenceBucket {
	buckets := []ConfidenceBucket{
		{MinConf: 0.30, MaxConf: 0.40},
		{MinConf: 0.40, MaxConf: 0.50},
		{MinConf: 0.50, MaxConf: 0.60},
		{MinConf: 0.60, MaxConf: 0.70},
		{MinConf: 0.70, MaxConf: 0.80},
		{MinConf: 0.80, MaxConf: 0.90},
	}

	for _, s := range signals {
		i := bucketIndex(buckets, s.Confidence)
		if i < 0 {
			continue
		}
		b := &buckets[i]
		b.TotalSignals++
		if s.Direction == models.DirectionBullish {
			b.Bullish++
		} else {
			b.Bearish++
		}
		b.TotalSize += s.PositionSize
		b.TotalLev += s.Leverage
		b.TotalRR += rewardRisk(s)
	}

	for i := range buckets {
		if n := buckets[i].TotalSignals; n > 0 {
			buckets[i].AvgSize = buckets[i].TotalSize / float64(n)
			buckets[i].AvgLeverage = float64(buckets[i].TotalLev) / float64(n)
			buckets[i].AvgRR = buckets[i].TotalRR / float64(n)
		}
	}
	return buckets
}

func bucketIndex(buckets []ConfidenceBucket, conf float64) int {
	for i, b := range buckets {
		if conf >= b.MinConf && conf < b.MaxConf {
			return i
		}
	}
	if last := len(buckets) - 1; last >= 0 && conf == buckets[last].MaxConf {
		return last
	}
	return -1
}

// rewardRisk is the take-profit distance over the stop distance
func rewardRisk(s models.TradingSignal) float64 {
	risk := math.Abs(s.EntryPrice - s.StopLoss)
	if risk == 0 {
		return 0
	}
	return math.Abs(s.TakeProfit-s.EntryPrice) / risk
}

func printBuckets(buckets []ConfidenceBucket) {
	fmt.Println("┌─────────────────┬─────────┬─────────┬─────────┬──────────────┬──────────┬────────┐")
	fmt.Println("│ Confidence      │ Signals │ Bullish │ Bearish │ Avg Size     │ Avg Lev  │ Avg RR │")
	fmt.Println("├─────────────────┼─────────┼─────────┼─────────┼──────────────┼──────────┼────────┤")
	for _, b := range buckets {
		fmt.Printf("│ %5.0f%% - %5.0f%% │ %7d │ %7d │ %7d │ %12.2f │ %7.2fx │ %6.2f │\n",
			b.MinConf*100, b.MaxConf*100,
			b.TotalSignals, b.Bullish, b.Bearish,
			b.AvgSize, b.AvgLeverage, b.AvgRR)
	}
	fmt.Println("└─────────────────┴─────────┴─────────┴─────────┴──────────────┴──────────┴────────┘")
}

func printTimeframes(signals []models.TradingSignal) {
	counts := make(map[string]int)
	var order []string
	for _, s := range signals {
		if counts[s.Timeframe] == 0 {
			order = append(order, s.Timeframe)
		}
		counts[s.Timeframe]++
	}

	fmt.Println("\n📈 SIGNALS PER TIMEFRAME")
	for _, tf := range order {
		fmt.Printf("   %-4s %5d\n", tf, counts[tf])
	}
}
