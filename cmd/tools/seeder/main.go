package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/digital-store/internal/catalog"
	"github.com/noah-isme/digital-store/internal/config"
	"github.com/noah-isme/digital-store/internal/coupon"
	"github.com/noah-isme/digital-store/internal/obs"
	"github.com/noah-isme/digital-store/internal/order"
)

func main() {
	migrate := flag.Bool("migrate", true, "apply the orders schema when DATABASE_URL is set")
	products := flag.Bool("products", true, "seed the launch catalogue into Redis")
	coupons := flag.Bool("coupons", true, "seed the default coupons into Redis")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "seeder").Logger()
	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background()), time.Minute)
	defer cancel()

	if *migrate && cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect database")
		}
		if err := order.Migrate(pool); err != nil {
			pool.Close()
			logger.Fatal().Err(err).Msg("migrate orders schema")
		}
		pool.Close()
		logger.Info().Msg("orders schema up to date")
	}

	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set; nothing to seed")
		return
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	rdb := redis.NewClient(opts)
	defer func() { _ = rdb.Close() }()

	report, err := seed(ctx, rdb, seedOptions{Products: *products, Coupons: *coupons})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed redis")
	}
	logger.Info().Int("products", report.Products).Int("coupons", report.Coupons).Int("coupons_skipped", report.CouponsSkipped).Msg("seeding completed")
}

type seedOptions struct {
	Products bool
	Coupons  bool
}

type seedReport struct {
	Products       int
	Coupons        int
	CouponsSkipped int
}

// defaultCoupons are the codes every fresh store starts with.
func defaultCoupons() []coupon.Coupon {
	return []coupon.Coupon{
		coupon.Welcome(),
		{Code: "FRETEGRATIS", Type: coupon.TypeShipping, IsFreeShipping: true},
	}
}

// seed is idempotent: products are upserted by id and existing coupon codes are kept.
func seed(ctx context.Context, rdb *redis.Client, opts seedOptions) (seedReport, error) {
	var report seedReport
	if opts.Products {
		initial := catalog.InitialProducts()
		if err := (catalog.RedisStore{Client: rdb}).Seed(ctx, initial...); err != nil {
			return report, fmt.Errorf("seed products: %w", err)
		}
		report.Products = len(initial)
	}
	if opts.Coupons {
		store := coupon.RedisCatalog{Client: rdb}
		for _, c := range defaultCoupons() {
			_, err := store.Add(ctx, c)
			switch {
			case errors.Is(err, coupon.ErrDuplicate):
				report.CouponsSkipped++
			case err != nil:
				return report, fmt.Errorf("seed coupon %s: %w", c.Code, err)
			default:
				report.Coupons++
			}
		}
	}
	zerolog.Ctx(ctx).Debug().Interface("report", report).Msg("seed finished")
	return report, nil
}
