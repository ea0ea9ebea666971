package msgio

import (
	"bytes"
	"io"
	"testing"

	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name"`
	Addrs []string `json:"addrs"`
}

// TestReadWriteMsg 连续多帧读写互不干扰
func TestReadWriteMsg(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMsg(&buf, sample{Name: "a", Addrs: []string{"/ip4/1.2.3.4/tcp/1"}}))
	require.NoError(t, WriteMsg(&buf, sample{Name: "b"}))

	var got sample
	require.NoError(t, ReadMsg(&buf, &got))
	assert.Equal(t, "a", got.Name)
	assert.Equal(t, []string{"/ip4/1.2.3.4/tcp/1"}, got.Addrs)

	got = sample{}
	require.NoError(t, ReadMsg(&buf, &got))
	assert.Equal(t, "b", got.Name)

	assert.ErrorIs(t, ReadMsg(&buf, &got), io.EOF)
}

// TestReadFrame_TooLarge 超长前缀被拒绝且不分配缓冲
func TestReadFrame_TooLarge(t *testing.T) {
	r := bytes.NewReader(varint.ToUvarint(MaxMessageSize + 1))
	_, err := ReadFrame(r)
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

// TestWriteFrame_Limits 测试写入边界
func TestWriteFrame_Limits(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteFrame(&buf, nil), ErrEmptyMessage)
	assert.ErrorIs(t, WriteFrame(&buf, make([]byte, MaxMessageSize+1)), ErrMessageTooLarge)
	assert.Zero(t, buf.Len())
}

// TestReadFrame_Truncated 截断的帧返回错误
func TestReadFrame_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-2])
	_, err := ReadFrame(truncated)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
