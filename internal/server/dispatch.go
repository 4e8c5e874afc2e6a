package server

import (
	"github.com/koopa0/classic-pong/internal/protocol"
	"github.com/koopa0/classic-pong/internal/room"
	"github.com/koopa0/classic-pong/pkg/logger"
)

const waitMessage = "Waiting for opponent..."

// dispatch 處理一則客戶端訊息；返回 false 表示應關閉連線
func (s *Server) dispatch(c *Client, msg protocol.Message) bool {
	if !protocol.ClientOriginated(msg.Type()) {
		s.logger.DebugContext(c.ctx, "ignoring server-side message", "type", msg.Type())
		return true
	}

	var err error
	switch m := msg.(type) {
	case protocol.Connect:
		s.join(c, false, "")
	case protocol.AIMode:
		s.join(c, true, m.Difficulty)
	case protocol.Ready:
		err = s.manager.MarkReady(c)
	case protocol.Input:
		err = s.manager.SetInput(c, m.MoveUp, m.MoveDown)
	case protocol.PlayAgain:
		err = s.manager.RequestRematch(c)
	case protocol.Disconnect:
		return false
	}

	if err != nil {
		s.logger.DebugContext(c.ctx, "message rejected", "type", msg.Type(), "error", err)
	}
	return true
}

// join 註冊並回覆 PLAYER_ID，接著 WAIT 或 READY
//
// 房間滿員時 READY 送給房內每一位真人。
func (s *Server) join(c *Client, wantsBot bool, difficulty string) {
	roomID, slot, full, err := s.manager.Register(c, wantsBot, difficulty)
	if err != nil {
		s.logger.WarnContext(c.ctx, "register failed", "bot", wantsBot, "difficulty", difficulty, "error", err)
		return
	}

	ctx := logger.WithRoomID(c.ctx, roomID)
	s.logger.InfoContext(ctx, "player registered", "slot", slot, "full", full, "bot", wantsBot)

	s.sendTo(c, protocol.PlayerID{ID: slot})
	if !full {
		s.sendTo(c, protocol.Wait{Message: waitMessage})
		return
	}

	r := s.manager.Lookup(c)
	if r == nil {
		return
	}
	for _, h := range r.Humans() {
		s.sendTo(h, protocol.Ready{})
	}
}

func (s *Server) sendTo(c room.Conn, msg protocol.Message) {
	if err := c.Send(msg); err != nil {
		s.logger.Debug("send dropped", "conn_id", c.ID(), "type", msg.Type(), "error", err)
	}
}
