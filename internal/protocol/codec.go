package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete 緩衝區開頭的記錄尚未接收完整，需要更多位元組
	ErrIncomplete = errors.New("protocol: incomplete record")
	// ErrMalformed 緩衝區開頭不是合法記錄，已跳到下一個可能的記錄起點
	ErrMalformed = errors.New("protocol: malformed record")
	// ErrUnknownType 記錄完整但標籤未知
	ErrUnknownType = errors.New("protocol: unknown message type")
	// ErrInvalidPayload 記錄完整但負載形狀不符
	ErrInvalidPayload = errors.New("protocol: invalid payload")
)

// Codec 記錄編解碼器
//
// Next 嘗試從 buf 開頭解出一筆記錄，回傳應從緩衝區移除的位元組數 n：
//   - err == nil：msg 為解出的訊息
//   - ErrIncomplete：記錄未完整，n 只涵蓋可安全丟棄的前導空白
//   - ErrMalformed：n 為跳過的壞位元組
//   - ErrUnknownType / ErrInvalidPayload：整筆記錄被丟棄
type Codec interface {
	Name() string
	Encode(msg Message) ([]byte, error)
	Next(buf []byte) (msg Message, n int, err error)
}

// 編解碼器名稱
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// NewCodec 依名稱建立編解碼器
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// decodePayload 依標籤建立對應負載並驗證
//
// unmarshal 負責把 data 欄位填入目標；data 缺省時不應回傳錯誤。
func decodePayload(t Type, unmarshal func(v any) error) (Message, error) {
	switch t {
	case TypeConnect:
		return Connect{}, nil
	case TypeReady:
		return Ready{}, nil
	case TypePlayAgain:
		return PlayAgain{}, nil
	case TypeRestart:
		return Restart{}, nil
	case TypeDisconnect:
		return Disconnect{}, nil

	case TypeAIMode:
		var p AIMode
		if err := unmarshal(&p); err != nil {
			return nil, invalid(t, err)
		}
		if p.Difficulty == "" {
			p.Difficulty = DifficultyMedium
		}
		if !ValidDifficulty(p.Difficulty) {
			return nil, invalid(t, fmt.Errorf("difficulty %q", p.Difficulty))
		}
		return p, nil

	case TypePlayerID:
		var p PlayerID
		if err := unmarshal(&p); err != nil {
			return nil, invalid(t, err)
		}
		if p.ID != 1 && p.ID != 2 {
			return nil, invalid(t, fmt.Errorf("id %d", p.ID))
		}
		return p, nil

	case TypeWait:
		var p Wait
		if err := unmarshal(&p); err != nil {
			return nil, invalid(t, err)
		}
		return p, nil

	case TypeInput:
		var p Input
		if err := unmarshal(&p); err != nil {
			return nil, invalid(t, err)
		}
		return p, nil

	case TypeGameState:
		var p GameState
		if err := unmarshal(&p); err != nil {
			return nil, invalid(t, err)
		}
		return p, nil

	case TypeGameOver:
		var p GameOver
		if err := unmarshal(&p); err != nil {
			return nil, invalid(t, err)
		}
		if p.Winner != 1 && p.Winner != 2 {
			return nil, invalid(t, fmt.Errorf("winner %d", p.Winner))
		}
		return p, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

func invalid(t Type, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, t, err)
}
