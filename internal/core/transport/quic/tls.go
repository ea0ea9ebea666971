// Package quic 提供基于 QUIC 的传输
//
// QUIC 自带 TLS 1.3 加密与流多路复用。证书由节点 Ed25519 身份私钥自签名，
// 远端 NodeID 总是从证书公钥派生，不信任任何扩展字段。
package quic

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// alpn 应用层协议标识
const alpn = "bootnode"

var (
	// ErrNoCertificate 对端未提供证书
	ErrNoCertificate = errors.New("quic: peer presented no certificate")

	// ErrUnsupportedKey 证书公钥不是 Ed25519
	ErrUnsupportedKey = errors.New("quic: certificate key is not ed25519")

	// ErrPeerIDMismatch 对端身份与期望不符
	ErrPeerIDMismatch = errors.New("quic: peer ID mismatch")
)

// newCertificate 由身份私钥生成自签名证书
func newCertificate(id *identity.Identity) (tls.Certificate, error) {
	nodeID := id.ID()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName: nodeID.String(),
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(180 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, id.PublicKey(), id.PrivateKey())
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  id.PrivateKey(),
	}, nil
}

// baseTLSConfig 返回双向认证的 TLS 1.3 配置
//
// 自签名证书无法走 CA 验证，由 verifyPeer 从证书公钥派生 NodeID 完成认证。
func baseTLSConfig(cert tls.Certificate, expected types.NodeID) *tls.Config {
	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		NextProtos:         []string{alpn},
		InsecureSkipVerify: true,
		ClientAuth:         tls.RequireAnyClientCert,
		MinVersion:         tls.VersionTLS13,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			_, err := verifyPeer(rawCerts, expected)
			return err
		},
	}
}

// verifyPeer 校验证书并派生 NodeID，expected 非空时必须一致
func verifyPeer(rawCerts [][]byte, expected types.NodeID) (ed25519.PublicKey, error) {
	if len(rawCerts) == 0 {
		return nil, ErrNoCertificate
	}
	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return nil, fmt.Errorf("certificate not valid at %s", now.Format(time.RFC3339))
	}
	// 非 CA 证书不能用 CheckSignatureFrom 自验，直接校验 TBS 签名
	if err := cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		return nil, fmt.Errorf("certificate self-signature: %w", err)
	}
	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return nil, ErrUnsupportedKey
	}
	if !expected.IsEmpty() && types.NodeIDFromPublicKey(pub) != expected {
		return nil, ErrPeerIDMismatch
	}
	return pub, nil
}

// peerFromState 从握手完成的连接状态中取出对端公钥与 NodeID
func peerFromState(state tls.ConnectionState) (ed25519.PublicKey, types.NodeID, error) {
	if len(state.PeerCertificates) == 0 {
		return nil, types.EmptyNodeID, ErrNoCertificate
	}
	pub, ok := state.PeerCertificates[0].PublicKey.(ed25519.PublicKey)
	if !ok {
		return nil, types.EmptyNodeID, ErrUnsupportedKey
	}
	return pub, types.NodeIDFromPublicKey(pub), nil
}
