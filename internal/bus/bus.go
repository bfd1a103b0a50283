package bus

import (
	"sync"
	"time"
)

type MsgType string

const (
	MsgQueryStarted     MsgType = "query.started"
	MsgDecisionReceived MsgType = "decision.received"
	MsgToolStarted      MsgType = "tool.started"
	MsgToolCompleted    MsgType = "tool.completed"
	MsgToolFailed       MsgType = "tool.failed"
	MsgQueryCompleted   MsgType = "query.completed"
	MsgQueryFailed      MsgType = "query.failed"
)

type Message struct {
	Type    MsgType     `json:"type"`
	QueryID string      `json:"query_id,omitempty"`
	Tool    string      `json:"tool,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	Time    time.Time   `json:"time"`
}

// QueryStarted is the payload of MsgQueryStarted.
type QueryStarted struct {
	Query   string `json:"query"`
	Backend string `json:"backend"`
}

// DecisionReceived is the payload of MsgDecisionReceived. ToolCall is false
// when the model answered directly.
type DecisionReceived struct {
	ToolCall bool   `json:"tool_call"`
	Tool     string `json:"tool,omitempty"`
}

// ToolStarted is the payload of MsgToolStarted.
type ToolStarted struct {
	Input string `json:"input"`
}

// ToolCompleted is the payload of MsgToolCompleted.
type ToolCompleted struct {
	Duration time.Duration `json:"duration_ns"`
	Output   string        `json:"output"`
	Metadata string        `json:"metadata,omitempty"`
}

// ToolFailed is the payload of MsgToolFailed.
type ToolFailed struct {
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error"`
}

// QueryCompleted is the payload of MsgQueryCompleted.
type QueryCompleted struct {
	Answer   string        `json:"answer"`
	Duration time.Duration `json:"duration_ns"`
}

// QueryFailed is the payload of MsgQueryFailed.
type QueryFailed struct {
	Kind     string        `json:"kind"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration_ns"`
}

type Handler func(msg Message)

type MessageBus struct {
	mu       sync.RWMutex
	handlers map[MsgType][]Handler
	history  []Message
	maxHist  int
}

func New(maxHistory int) *MessageBus {
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	return &MessageBus{
		handlers: make(map[MsgType][]Handler),
		maxHist:  maxHistory,
	}
}

func (b *MessageBus) Subscribe(msgType MsgType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[msgType] = append(b.handlers[msgType], h)
}

func (b *MessageBus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers["*"] = append(b.handlers["*"], h)
}

// Publish delivers msg synchronously, type-specific handlers first.
// A zero Time is stamped with the current time.
func (b *MessageBus) Publish(msg Message) {
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}

	b.mu.Lock()
	b.history = append(b.history, msg)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}
	// Copy handlers under lock
	specific := make([]Handler, len(b.handlers[msg.Type]))
	copy(specific, b.handlers[msg.Type])
	wildcard := make([]Handler, len(b.handlers["*"]))
	copy(wildcard, b.handlers["*"])
	b.mu.Unlock()

	for _, h := range specific {
		h(msg)
	}
	for _, h := range wildcard {
		h(msg)
	}
}

func (b *MessageBus) History(n int) []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	start := len(b.history) - n
	result := make([]Message, n)
	copy(result, b.history[start:])
	return result
}

// ForQuery returns the retained messages of one query, oldest first.
func (b *MessageBus) ForQuery(queryID string) []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Message
	for _, m := range b.history {
		if m.QueryID == queryID {
			out = append(out, m)
		}
	}
	return out
}
