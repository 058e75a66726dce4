package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisx "github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/redis"
)

type seatView struct {
	Row    string `json:"row"`
	Col    int    `json:"col"`
	Status string `json:"status"`
}

func TestGetOrSetJSON_CacheHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)
	ctx := context.Background()

	mock.ExpectGet("k").SetVal(`[{"row":"A","col":1,"status":"booked"}]`)

	got, err := GetOrSetJSON(ctx, c, "k", time.Minute, func(ctx context.Context) ([]seatView, error) {
		t.Fatal("loader must not run on a cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "booked", got[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_MissLoadsAndStores(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)
	ctx := context.Background()

	loaded := []seatView{{Row: "B", Col: 2, Status: "on_hold"}}
	payload := `[{"row":"B","col":2,"status":"on_hold"}]`

	// Outer check, then re-check inside the singleflight group.
	mock.ExpectGet("k").RedisNil()
	mock.ExpectGet("k").RedisNil()
	mock.ExpectSet("k", payload, time.Minute).SetVal("OK")

	calls := 0
	got, err := GetOrSetJSON(ctx, c, "k", time.Minute, func(ctx context.Context) ([]seatView, error) {
		calls++
		return loaded, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, loaded, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateShowtime(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)
	ctx := context.Background()

	mock.ExpectDel(redisx.KeySeatMap(7), redisx.KeyBookedSeats(7)).SetVal(2)

	require.NoError(t, c.InvalidateShowtime(ctx, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}
