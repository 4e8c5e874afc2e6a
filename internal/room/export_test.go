package room

import "github.com/koopa0/classic-pong/internal/game"

// MutateState 直接修改進行中的模擬狀態
func (r *Room) MutateState(fn func(s *game.State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return
	}
	s := r.engine.State()
	fn(&s)
	r.engine.SetState(s)
}

// Locked 回報房間鎖目前是否被持有
func (r *Room) Locked() bool {
	if r.mu.TryLock() {
		r.mu.Unlock()
		return false
	}
	return true
}
