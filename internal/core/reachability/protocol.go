package reachability

// MessageType 回拨协议消息类型
type MessageType string

const (
	// MsgDialRequest 请求方 → 服务端：请回拨这些地址
	MsgDialRequest MessageType = "DIAL_REQUEST"
	// MsgDialResponse 服务端 → 请求方：回拨结果
	MsgDialResponse MessageType = "DIAL_RESPONSE"
	// MsgDialBack 服务端 → 请求方（新连接上）：回显随机数
	MsgDialBack MessageType = "DIAL_BACK"
	// MsgDialBackResponse 请求方 → 服务端（新连接上）：确认随机数
	MsgDialBackResponse MessageType = "DIAL_BACK_RESPONSE"
)

// Status 响应状态
type Status string

const (
	StatusOK            Status = "OK"
	StatusDialError     Status = "E_DIAL_ERROR"
	StatusDialRefused   Status = "E_DIAL_REFUSED"
	StatusBadRequest    Status = "E_BAD_REQUEST"
	StatusInternalError Status = "E_INTERNAL_ERROR"
)

// Message 线上消息，uvarint 长度前缀的 JSON
type Message struct {
	Type   MessageType `json:"type"`
	Nonce  uint64      `json:"nonce,omitempty"`
	Addrs  []string    `json:"addrs,omitempty"`
	Status Status      `json:"status,omitempty"`

	// Addr 成功回拨时使用的地址
	Addr string `json:"addr,omitempty"`
	Text string `json:"text,omitempty"`
}
