package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec 以 MessagePack map {type, data} 為一筆記錄
//
// 欄位名稱沿用 json tag，兩種編碼的訊息形狀一致。
type MsgpackCodec struct{}

type msgpackEnvelope struct {
	Type Type               `json:"type"`
	Data msgpack.RawMessage `json:"data,omitempty"`
}

// msgpackHeader 每筆記錄的開頭：兩個欄位的 fixmap，接著 fixstr "type"
var msgpackHeader = []byte{0x82, 0xa4, 't', 'y', 'p', 'e'}

// Name 回傳編解碼器名稱
func (MsgpackCodec) Name() string { return CodecMsgpack }

// Encode 編碼一則訊息
func (MsgpackCodec) Encode(msg Message) ([]byte, error) {
	data, err := msgpackMarshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msg.Type(), err)
	}
	return msgpackMarshal(msgpackEnvelope{Type: msg.Type(), Data: data})
}

// Next 從 buf 開頭解出一筆記錄
func (MsgpackCodec) Next(buf []byte) (Message, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrIncomplete
	}

	// 先確認記錄開頭，避免殘缺的容器標頭吞掉後續記錄或宣稱巨大長度
	head := min(len(buf), len(msgpackHeader))
	if !bytes.Equal(buf[:head], msgpackHeader[:head]) {
		return nil, 1, ErrMalformed
	}
	if head < len(msgpackHeader) {
		return nil, 0, ErrIncomplete
	}

	r := bytes.NewReader(buf)
	dec := msgpack.NewDecoder(r)
	raw, err := dec.DecodeRaw()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, ErrIncomplete
		}
		return nil, 1, ErrMalformed
	}
	n := len(buf) - r.Len()

	var env msgpackEnvelope
	if err := msgpackUnmarshal(raw, &env); err != nil {
		return nil, n, invalid(env.Type, err)
	}
	msg, err := decodePayload(env.Type, func(v any) error {
		if len(env.Data) == 0 {
			return nil
		}
		return msgpackUnmarshal(env.Data, v)
	})
	return msg, n, err
}

func msgpackMarshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func msgpackUnmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
