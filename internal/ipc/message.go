// Package ipc is the channel between the host and a queue worker: newline
// delimited JSON messages over a pair of pipes the worker inherits as extra
// file descriptors.
package ipc

import (
	"encoding/json"
	"fmt"
)

// MessageType tags every message on the channel.
type MessageType string

const (
	// TypeWorkerReady is sent once by a worker when it can accept messages.
	TypeWorkerReady MessageType = "worker-ready"
	// TypeSetConfig replaces the worker's application config snapshot.
	TypeSetConfig MessageType = "set-config"
	// TypeAddItem carries one work item.
	TypeAddItem MessageType = "add-item"
	// TypeQueueEmpty is a hint that the worker's backlog drained.
	TypeQueueEmpty MessageType = "queue-empty"
	// TypeShutdown asks the worker to exit.
	TypeShutdown MessageType = "shutdown"
)

// Message is the single wire envelope. Only the field matching Type is set.
type Message struct {
	Type   MessageType     `json:"type"`
	Config map[string]any  `json:"config,omitempty"`
	Item   json.RawMessage `json:"item,omitempty"`
}

func WorkerReady() Message { return Message{Type: TypeWorkerReady} }
func QueueEmpty() Message  { return Message{Type: TypeQueueEmpty} }
func Shutdown() Message    { return Message{Type: TypeShutdown} }

// SetConfig wraps a config snapshot. A nil map is sent as an empty object.
func SetConfig(cfg map[string]any) Message {
	if cfg == nil {
		cfg = map[string]any{}
	}
	return Message{Type: TypeSetConfig, Config: cfg}
}

// AddItem marshals item into an add-item message.
func AddItem(item any) (Message, error) {
	b, err := json.Marshal(item)
	if err != nil {
		return Message{}, fmt.Errorf("marshal item: %w", err)
	}
	return Message{Type: TypeAddItem, Item: b}, nil
}

// DecodeItem unmarshals an add-item payload into v.
func (m Message) DecodeItem(v any) error {
	if m.Type != TypeAddItem {
		return fmt.Errorf("not an add-item message: %s", m.Type)
	}
	if len(m.Item) == 0 {
		return fmt.Errorf("add-item without payload")
	}
	return json.Unmarshal(m.Item, v)
}
