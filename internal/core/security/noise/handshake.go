// Package noise 实现 Noise 协议安全传输
//
// 握手遵循 libp2p-noise 的 XX 模式：
//
//	-> e
//	<- e, ee, s, es, payload
//	-> s, se, payload
//
// payload 为 JSON {identity_key, identity_sig}，
// identity_sig = Sign("noise-libp2p-static-key:" || curve25519_static_pubkey)。
package noise

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"filippo.io/edwards25519"
	"github.com/flynn/noise"

	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// payloadSigPrefix 是签名 payload 的前缀
const payloadSigPrefix = "noise-libp2p-static-key:"

// handshakePayload 握手 payload
type handshakePayload struct {
	IdentityKey []byte `json:"identity_key"`
	IdentitySig []byte `json:"identity_sig"`
}

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// performHandshake 执行 Noise XX 握手
//
// expected 非空时，对端身份必须与之一致。
func performHandshake(conn net.Conn, id *identity.Identity, static noise.DHKey, expected types.NodeID, initiator bool) (*secureConn, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: static,
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}

	localPayload, err := json.Marshal(handshakePayload{
		IdentityKey: id.PublicKey(),
		IdentitySig: id.Sign(append([]byte(payloadSigPrefix), static.Public...)),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var (
		sendCS, recvCS *noise.CipherState
		remotePayload  []byte
	)
	if initiator {
		sendCS, recvCS, remotePayload, err = clientHandshake(conn, hs, localPayload)
	} else {
		sendCS, recvCS, remotePayload, err = serverHandshake(conn, hs, localPayload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}

	remotePub, err := verifyRemotePayload(remotePayload, hs.PeerStatic())
	if err != nil {
		return nil, err
	}
	remoteID := types.NodeIDFromPublicKey(remotePub)
	if !expected.IsEmpty() && remoteID != expected {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPeerIDMismatch, expected.ShortString(), remoteID.ShortString())
	}

	return &secureConn{
		Conn:       conn,
		sendCS:     sendCS,
		recvCS:     recvCS,
		localPeer:  id.ID(),
		remotePeer: remoteID,
		remotePub:  remotePub,
	}, nil
}

// verifyRemotePayload 验证签名并返回对端身份公钥
func verifyRemotePayload(data []byte, remoteStatic []byte) (ed25519.PublicKey, error) {
	if len(remoteStatic) != 32 {
		return nil, fmt.Errorf("%w: static key length %d", ErrInvalidHandshake, len(remoteStatic))
	}
	var p handshakePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrInvalidHandshake, err)
	}
	pub := ed25519.PublicKey(p.IdentityKey)
	if !identity.Verify(pub, append([]byte(payloadSigPrefix), remoteStatic...), p.IdentitySig) {
		return nil, ErrInvalidSignature
	}
	return pub, nil
}

// ============================================================================
// 握手流程
// ============================================================================

// clientHandshake 发起者：-> e，<- e,ee,s,es,payload，-> s,se,payload
func clientHandshake(conn net.Conn, hs *noise.HandshakeState, localPayload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 1: %w", err)
	}
	if err := writeFrame(conn, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 1: %w", err)
	}

	msg2, err := readFrame(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 2: %w", err)
	}
	remotePayload, _, _, err := hs.ReadMessage(nil, msg2)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 2: %w", err)
	}

	msg3, cs1, cs2, err := hs.WriteMessage(nil, localPayload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 3: %w", err)
	}
	if err := writeFrame(conn, msg3); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 3: %w", err)
	}
	return cs1, cs2, remotePayload, nil
}

// serverHandshake 响应者：<- e，-> e,ee,s,es,payload，<- s,se,payload
func serverHandshake(conn net.Conn, hs *noise.HandshakeState, localPayload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	msg1, err := readFrame(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 1: %w", err)
	}
	if _, _, _, err = hs.ReadMessage(nil, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("read message 1: %w", err)
	}

	msg2, _, _, err := hs.WriteMessage(nil, localPayload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 2: %w", err)
	}
	if err := writeFrame(conn, msg2); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 2: %w", err)
	}

	msg3, err := readFrame(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 3: %w", err)
	}
	remotePayload, cs1, cs2, err := hs.ReadMessage(nil, msg3)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 3: %w", err)
	}
	// 响应者的收发方向与发起者相反
	return cs2, cs1, remotePayload, nil
}

// ============================================================================
// 密钥转换
// ============================================================================

// staticKeypair 由 Ed25519 身份派生 Curve25519 静态密钥对
func staticKeypair(id *identity.Identity) (noise.DHKey, error) {
	priv := ed25519ToCurve25519Private(id.PrivateKey())
	pub, err := ed25519ToCurve25519Public(id.PublicKey())
	if err != nil {
		return noise.DHKey{}, err
	}
	return noise.DHKey{Private: priv, Public: pub}, nil
}

// ed25519ToCurve25519Private SHA-512(seed) 前 32 字节并 clamp（RFC 7748）
func ed25519ToCurve25519Private(edPriv ed25519.PrivateKey) []byte {
	h := sha512.Sum512(edPriv.Seed())
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	return h[:32]
}

// ed25519ToCurve25519Public Edwards 点转 Montgomery u 坐标
func ed25519ToCurve25519Public(edPub ed25519.PublicKey) ([]byte, error) {
	point, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return nil, fmt.Errorf("invalid ed25519 public key: %w", err)
	}
	return point.BytesMontgomery(), nil
}

// ============================================================================
// 帧格式：2 字节大端长度 + 数据
// ============================================================================

func writeFrame(w io.Writer, data []byte) error {
	buf := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(buf, uint16(len(data)))
	copy(buf[2:], data)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	data := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
