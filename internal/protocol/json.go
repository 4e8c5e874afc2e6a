package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// JSONCodec 以 {"type": ..., "data": {...}} 物件為一筆記錄
type JSONCodec struct{}

type jsonEnvelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Name 回傳編解碼器名稱
func (JSONCodec) Name() string { return CodecJSON }

// Encode 編碼一則訊息
func (JSONCodec) Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msg.Type(), err)
	}
	return json.Marshal(jsonEnvelope{Type: msg.Type(), Data: data})
}

// Next 從 buf 開頭解出一筆記錄
func (JSONCodec) Next(buf []byte) (Message, int, error) {
	start := skipSpace(buf)
	if start == len(buf) {
		return nil, start, ErrIncomplete
	}
	if buf[start] != '{' {
		return nil, start + 1 + nextObject(buf[start+1:]), ErrMalformed
	}

	dec := json.NewDecoder(bytes.NewReader(buf[start:]))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, start, ErrIncomplete
		}
		return nil, start + 1 + nextObject(buf[start+1:]), ErrMalformed
	}
	n := start + int(dec.InputOffset())

	var env jsonEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, n, invalid(env.Type, err)
	}
	msg, err := decodePayload(env.Type, func(v any) error {
		if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
			return nil
		}
		return json.Unmarshal(env.Data, v)
	})
	return msg, n, err
}

func skipSpace(buf []byte) int {
	for i, c := range buf {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return i
	}
	return len(buf)
}

// nextObject 回傳 b 中下一個 '{' 的位置，找不到時回傳 len(b)
func nextObject(b []byte) int {
	if i := bytes.IndexByte(b, '{'); i >= 0 {
		return i
	}
	return len(b)
}
