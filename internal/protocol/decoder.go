package protocol

import "errors"

// DefaultMaxBuffer 單一連線未解碼位元組的上限
const DefaultMaxBuffer = 64 * 1024

// Decoder 每條連線一個的串流解碼器
//
// 呼叫端把讀到的任意長度片段交給 Feed，Decoder 保存尚未完整的尾巴，
// 下次 Feed 時接續解碼。不可並行使用。
type Decoder struct {
	codec     Codec
	buf       []byte
	maxBuffer int
	dropped   int
}

// NewDecoder 建立串流解碼器；maxBuffer <= 0 時使用 DefaultMaxBuffer
func NewDecoder(codec Codec, maxBuffer int) *Decoder {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &Decoder{codec: codec, maxBuffer: maxBuffer}
}

// Feed 追加位元組並回傳所有已完整的訊息（依到達順序）
//
// 壞資料、未知標籤與不合法負載被跳過並計入 Dropped。
// 未完整的尾巴超過上限時整個丟棄，避免對端灌入永不結束的記錄。
func (d *Decoder) Feed(p []byte) []Message {
	d.buf = append(d.buf, p...)

	var msgs []Message
	off := 0
	for off < len(d.buf) {
		msg, n, err := d.codec.Next(d.buf[off:])
		off += n
		if errors.Is(err, ErrIncomplete) {
			break
		}
		if err != nil {
			d.dropped++
			continue
		}
		msgs = append(msgs, msg)
	}

	// 壓縮：把剩餘尾巴搬到開頭
	rest := copy(d.buf, d.buf[off:])
	d.buf = d.buf[:rest]

	if len(d.buf) > d.maxBuffer {
		d.buf = d.buf[:0]
		d.dropped++
	}
	return msgs
}

// Buffered 目前保存的未解碼位元組數
func (d *Decoder) Buffered() int { return len(d.buf) }

// Dropped 累計丟棄的記錄數
func (d *Decoder) Dropped() int { return d.dropped }
