package main

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-store/internal/catalog"
	"github.com/noah-isme/digital-store/internal/coupon"
)

func TestSeedIsIdempotent(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	report, err := seed(ctx, rdb, seedOptions{Products: true, Coupons: true})
	require.NoError(t, err)
	require.Equal(t, len(catalog.InitialProducts()), report.Products)
	require.Equal(t, 2, report.Coupons)

	report, err = seed(ctx, rdb, seedOptions{Products: true, Coupons: true})
	require.NoError(t, err)
	require.Zero(t, report.Coupons)
	require.Equal(t, 2, report.CouponsSkipped)

	products, err := catalog.RedisStore{Client: rdb}.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, len(catalog.InitialProducts()))

	free, err := coupon.RedisCatalog{Client: rdb}.Find(ctx, "fretegratis")
	require.NoError(t, err)
	require.True(t, free.IsFreeShipping)
	require.Equal(t, 100, free.DiscountPercent)
}

func TestSeedSkipsDisabledSections(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	report, err := seed(context.Background(), rdb, seedOptions{Coupons: true})
	require.NoError(t, err)
	require.Zero(t, report.Products)
	require.False(t, mr.Exists("products"))
}
