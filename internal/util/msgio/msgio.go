// Package msgio 提供基于 uvarint 长度前缀的 JSON 消息读写
//
// 所有应用层协议（identify、dht、dialback）在 yamux 流上使用同一帧格式：
//
//	uvarint(len) || json(payload)
package msgio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// MaxMessageSize 单条消息的最大字节数
const MaxMessageSize = 64 * 1024

var (
	// ErrMessageTooLarge 消息超过 MaxMessageSize
	ErrMessageTooLarge = errors.New("message too large")

	// ErrEmptyMessage 长度前缀为 0
	ErrEmptyMessage = errors.New("empty message")
)

// byteReader 逐字节读取，避免缓冲读取吞掉后续帧
type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}

// WriteFrame 写入一帧原始字节
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyMessage
	}
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%w: %d", ErrMessageTooLarge, len(payload))
	}
	buf := make([]byte, 0, varint.UvarintSize(uint64(len(payload)))+len(payload))
	buf = append(buf, varint.ToUvarint(uint64(len(payload)))...)
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

// ReadFrame 读取一帧原始字节
func ReadFrame(r io.Reader) ([]byte, error) {
	n, err := varint.ReadUvarint(&byteReader{r: r})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEmptyMessage
	}
	if n > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d", ErrMessageTooLarge, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteMsg 将 v 编码为 JSON 并写入一帧
func WriteMsg(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return WriteFrame(w, data)
}

// ReadMsg 读取一帧并解码到 v
func ReadMsg(r io.Reader, v any) error {
	data, err := ReadFrame(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	return nil
}
