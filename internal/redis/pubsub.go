package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// ShowtimesPubSub broadcasts seat-state changes per showtime so that other
// instances can drop their cached seat maps.
type ShowtimesPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewShowtimesPubSub(rdb *redis.Client) *ShowtimesPubSub {
	return &ShowtimesPubSub{
		rdb:     rdb,
		channel: ChannelShowtimesChanged(),
	}
}

type showtimeChangedMsg struct {
	Type       string `json:"type"`
	ShowtimeID int64  `json:"showtime_id"`
	TsUnix     int64  `json:"ts_unix"`
}

func (p *ShowtimesPubSub) PublishShowtimeChanged(ctx context.Context, showtimeID int64) error {
	msg := showtimeChangedMsg{
		Type:       "showtime_changed",
		ShowtimeID: showtimeID,
		TsUnix:     time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *ShowtimesPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, showtimeID int64)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev showtimeChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.ShowtimeID != 0 {
				handler(ctx, ev.ShowtimeID)
			}
		}
	}
}
