package identify

import (
	"fmt"
	"strings"
)

// Agent 解析后的代理版本，格式 base/client_type/mode
//
// 例如 "bootnode/go-client/server"。
type Agent struct {
	Base       string
	ClientType string
	Mode       string
}

// ParseAgent 解析代理版本字符串
func ParseAgent(s string) (Agent, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Agent{}, fmt.Errorf("%w: %q", ErrInvalidAgent, s)
	}
	for _, p := range parts {
		if p == "" {
			return Agent{}, fmt.Errorf("%w: %q", ErrInvalidAgent, s)
		}
	}
	return Agent{Base: parts[0], ClientType: parts[1], Mode: parts[2]}, nil
}

// String 返回代理版本字符串
func (a Agent) String() string {
	return a.Base + "/" + a.ClientType + "/" + a.Mode
}
