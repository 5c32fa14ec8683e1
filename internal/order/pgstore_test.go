package order_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-store/internal/order"
)

func TestPGStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, order.Migrate(pool))
	_, err = pool.Exec(ctx, `DELETE FROM orders WHERE customer_id LIKE 'pgtest-%'`)
	require.NoError(t, err)

	svc := order.NewService(order.PGStore{Pool: pool}, nil)
	placed, err := svc.Place(ctx, draft("pgtest-a"))
	require.NoError(t, err)

	got, err := svc.Get(ctx, placed.ID)
	require.NoError(t, err)
	require.True(t, placed.Total.Equal(got.Total))
	require.Equal(t, placed.Items[0].Name, got.Items[0].Name)

	mine, err := svc.ListByCustomer(ctx, "pgtest-a")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	updated, err := svc.UpdateStatus(ctx, placed.ID, "processing")
	require.NoError(t, err)
	require.Equal(t, order.StatusProcessing, updated.Status)
	_, err = svc.UpdateStatus(ctx, placed.ID, "pending")
	require.ErrorIs(t, err, order.ErrInvalidTransition)
}
