package noise

import (
	"crypto/ed25519"
	"fmt"
	"net"
	"sync"

	"github.com/flynn/noise"

	"github.com/dep2p/go-bootnode/pkg/types"
)

const (
	maxFrameLen  = 65535
	macSize      = 16
	maxPlaintext = maxFrameLen - macSize
)

// secureConn Noise 加密连接
type secureConn struct {
	net.Conn

	sendCS *noise.CipherState
	recvCS *noise.CipherState

	localPeer  types.NodeID
	remotePeer types.NodeID
	remotePub  ed25519.PublicKey

	readMu  sync.Mutex
	writeMu sync.Mutex
	readBuf []byte
}

// 确保实现接口
var _ Conn = (*secureConn)(nil)

// Read 读取并解密
func (c *secureConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.readBuf) == 0 {
		frame, err := readFrame(c.Conn)
		if err != nil {
			return 0, err
		}
		plaintext, err := c.recvCS.Decrypt(nil, nil, frame)
		if err != nil {
			return 0, fmt.Errorf("decrypt: %w", err)
		}
		c.readBuf = plaintext
	}

	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

// Write 加密并写入，超过单帧上限时分片
func (c *secureConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	written := 0
	for written < len(p) {
		end := written + maxPlaintext
		if end > len(p) {
			end = len(p)
		}
		ciphertext, err := c.sendCS.Encrypt(nil, nil, p[written:end])
		if err != nil {
			return written, fmt.Errorf("encrypt: %w", err)
		}
		if err := writeFrame(c.Conn, ciphertext); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

// LocalPeer 返回本地节点 ID
func (c *secureConn) LocalPeer() types.NodeID { return c.localPeer }

// RemotePeer 返回对端节点 ID
func (c *secureConn) RemotePeer() types.NodeID { return c.remotePeer }

// RemotePublicKey 返回对端身份公钥
func (c *secureConn) RemotePublicKey() ed25519.PublicKey { return c.remotePub }
