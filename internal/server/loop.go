package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/koopa0/classic-pong/internal/protocol"
	"github.com/koopa0/classic-pong/internal/room"
)

// Loop 固定頻率推進所有進行中的房間並廣播快照
//
// 每個 tick：
//  1. 從管理器取得 active 房間的快照（只持有註冊表讀鎖）
//  2. 逐一鎖住房間推進：電腦決策 → 模擬 → 收集收件人
//  3. 解鎖後送出 GAME_STATE；剛分出勝負的房間再送 GAME_OVER
//
// 發送是非阻塞入列，單一房間的 panic 只影響該房間的這個 tick。
type Loop struct {
	manager  *room.Manager
	interval time.Duration
	logger   *slog.Logger
}

// NewLoop 建立編排迴圈
func NewLoop(manager *room.Manager, interval time.Duration, logger *slog.Logger) *Loop {
	return &Loop{
		manager:  manager,
		interval: interval,
		logger:   logger.With("component", "loop"),
	}
}

// Run 執行直到 ctx 結束
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("tick loop started", "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("tick loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			l.TickOnce(now)
		}
	}
}

// TickOnce 同步推進一個 tick，返回推進的房間數
func (l *Loop) TickOnce(now time.Time) int {
	advanced := 0
	for _, r := range l.manager.ActiveRooms() {
		if l.step(r, now) {
			advanced++
		}
	}
	return advanced
}

func (l *Loop) step(r *room.Room, now time.Time) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			l.logger.Error("room tick panicked", "room_id", r.ID, "panic", p)
			ok = false
		}
	}()

	res, ok := r.Advance(now)
	if !ok {
		return false
	}

	snapshot := res.State.Snapshot()
	for _, c := range res.Recipients {
		if err := c.Send(snapshot); err != nil {
			l.logger.Debug("game state dropped", "room_id", r.ID, "conn_id", c.ID(), "error", err)
		}
	}

	if res.Finished {
		over := protocol.GameOver{Winner: res.State.Winner}
		for _, c := range res.Recipients {
			if err := c.Send(over); err != nil {
				l.logger.Debug("game over dropped", "room_id", r.ID, "conn_id", c.ID(), "error", err)
			}
		}
		l.logger.Info("match finished",
			"room_id", r.ID,
			"winner", res.State.Winner,
			"score1", res.State.Score1,
			"score2", res.State.Score2,
			"ticks", res.State.Tick)
	}
	return true
}
