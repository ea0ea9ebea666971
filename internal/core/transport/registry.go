package transport

import (
	"fmt"
	"sync"

	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/multierr"

	"github.com/dep2p/go-bootnode/pkg/interfaces"
)

// Registry 按地址选择传输
type Registry struct {
	mu         sync.RWMutex
	transports []interfaces.Transport
}

// NewRegistry 创建传输注册表，按传入顺序匹配
func NewRegistry(ts ...interfaces.Transport) *Registry {
	r := &Registry{}
	for _, t := range ts {
		r.Add(t)
	}
	return r
}

// Add 注册传输，nil 被忽略
func (r *Registry) Add(t interfaces.Transport) {
	if t == nil {
		return
	}
	r.mu.Lock()
	r.transports = append(r.transports, t)
	r.mu.Unlock()
}

// ForAddr 返回能处理该地址的传输
func (r *Registry) ForAddr(addr ma.Multiaddr) (interfaces.Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.transports {
		if t.CanDial(addr) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoTransport, addr)
}

// CanDial 检查是否有传输能处理该地址
func (r *Registry) CanDial(addr ma.Multiaddr) bool {
	_, err := r.ForAddr(addr)
	return err == nil
}

// Transports 返回已注册的传输
func (r *Registry) Transports() []interfaces.Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]interfaces.Transport(nil), r.transports...)
}

// Close 关闭所有传输
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	for _, t := range r.transports {
		err = multierr.Append(err, t.Close())
	}
	r.transports = nil
	return err
}
