package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var logger = log.Logger("core/identity")

// Source 身份来源
type Source int

const (
	SourceRandom Source = iota
	SourceSeed
	SourceKey
)

// String 返回来源名
func (s Source) String() string {
	switch s {
	case SourceSeed:
		return "seed"
	case SourceKey:
		return "key"
	default:
		return "random"
	}
}

// ============================================================================
//                              Identity 实现
// ============================================================================

// Identity 进程生命周期内唯一的 Ed25519 身份
type Identity struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	nodeID     types.NodeID
	source     Source
}

// New 按配置创建身份
//
// 优先级：Key > Seed > 随机。Key 格式非法时直接返回 ErrInvalidKey，不做回退。
func New(cfg config.IdentityConfig) (*Identity, error) {
	var (
		id  *Identity
		err error
	)
	switch {
	case cfg.Seed != "" && cfg.Key != "":
		return nil, ErrConflictingSource
	case cfg.Key != "":
		id, err = FromHexKey(cfg.Key)
	case cfg.Seed != "":
		id = FromSeed(cfg.Seed)
	default:
		id, err = Generate()
	}
	if err != nil {
		return nil, err
	}
	logger.Info("本地身份已加载", "nodeID", id.ID(), "source", id.source)
	return id, nil
}

// FromSeed 由种子字符串确定性派生身份
//
// Ed25519 私钥种子 = SHA3-256(seed)。
func FromSeed(seed string) *Identity {
	digest := sha3.Sum256([]byte(seed))
	id := fromPrivateKey(ed25519.NewKeyFromSeed(digest[:]))
	id.source = SourceSeed
	return id
}

// FromHexKey 从十六进制编码的 32 字节私钥种子创建身份
func FromHexKey(s string) (*Identity, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != ed25519.SeedSize {
		return nil, ErrInvalidKey
	}
	id := fromPrivateKey(ed25519.NewKeyFromSeed(raw))
	id.source = SourceKey
	return id, nil
}

// Generate 生成随机身份
func Generate() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToGenerateKey, err)
	}
	return fromPrivateKey(priv), nil
}

func fromPrivateKey(priv ed25519.PrivateKey) *Identity {
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{
		privateKey: priv,
		publicKey:  pub,
		nodeID:     types.NodeIDFromPublicKey(pub),
	}
}

// ID 返回节点 ID
func (i *Identity) ID() types.NodeID {
	return i.nodeID
}

// PublicKey 返回公钥
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.publicKey
}

// PrivateKey 返回私钥
func (i *Identity) PrivateKey() ed25519.PrivateKey {
	return i.privateKey
}

// Source 返回身份来源
func (i *Identity) Source() Source {
	return i.source
}

// Sign 签名数据
func (i *Identity) Sign(data []byte) []byte {
	return ed25519.Sign(i.privateKey, data)
}

// Verify 使用给定公钥验证签名
func Verify(pub ed25519.PublicKey, data, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, data, sig)
}
