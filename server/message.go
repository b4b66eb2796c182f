package server

import (
	"errors"
	"fmt"

	"github.com/alimasry/go-collab-list/ot"
)

// ErrUnknownKind is returned for a wire operation whose kind is not known.
var ErrUnknownKind = errors.New("unknown operation kind")

// Message types exchanged over WebSocket.
const (
	MsgJoin    = "join"
	MsgLeave   = "leave"
	MsgOp      = "op"
	MsgAck     = "ack"
	MsgState   = "state"
	MsgDiscard = "discard"
	MsgReject  = "reject"
	MsgError   = "error"
)

// Wire operation kinds.
const (
	OpInsert = "insert"
	OpRemove = "remove"
	OpModify = "modify"
	OpMove   = "move"
	OpClear  = "clear"
	OpReset  = "reset"
)

// WireOp is an operation as sent over the wire. Index -1 on an insert
// appends. Items is only used by reset.
type WireOp struct {
	Kind  string `json:"kind" msgpack:"kind"`
	Index int    `json:"index" msgpack:"index"`
	From  int    `json:"from" msgpack:"from"`
	To    int    `json:"to" msgpack:"to"`
	Value any    `json:"value,omitempty" msgpack:"value,omitempty"`
	Items []any  `json:"items,omitempty" msgpack:"items,omitempty"`
}

// Operation converts w into an engine operation. Reset is not an engine
// operation and is rejected here.
func (w WireOp) Operation() (ot.Operation[any], error) {
	switch w.Kind {
	case OpInsert:
		return ot.NewInsert[any](w.Index, w.Value), nil
	case OpRemove:
		return ot.NewRemove[any](w.Index), nil
	case OpModify:
		return ot.NewModify[any](w.Index, w.Value), nil
	case OpMove:
		return ot.NewMove[any](w.From, w.To), nil
	case OpClear:
		return ot.NewClear[any](), nil
	}
	return ot.Operation[any]{}, fmt.Errorf("%q: %w", w.Kind, ErrUnknownKind)
}

func wireOp(op ot.Operation[any]) *WireOp {
	w := &WireOp{Kind: op.Kind.String()}
	switch op.Kind {
	case ot.KindInsert, ot.KindModify:
		w.Index, w.Value = op.Index, op.Value
	case ot.KindRemove:
		w.Index = op.Index
	case ot.KindMove:
		w.From, w.To = op.From, op.To
	}
	return w
}

// ClientMessage is a message from client to server.
type ClientMessage struct {
	Type         string  `json:"type" msgpack:"type"`
	CollectionID string  `json:"collectionId,omitempty" msgpack:"collectionId,omitempty"`
	Revision     int     `json:"revision" msgpack:"revision"`
	Op           *WireOp `json:"op,omitempty" msgpack:"op,omitempty"`
}

// ServerMessage is a message from server to client.
type ServerMessage struct {
	Type         string       `json:"type" msgpack:"type"`
	CollectionID string       `json:"collectionId,omitempty" msgpack:"collectionId,omitempty"`
	Items        []any        `json:"items,omitempty" msgpack:"items,omitempty"`
	Revision     int          `json:"revision" msgpack:"revision"`
	Op           *WireOp      `json:"op,omitempty" msgpack:"op,omitempty"`
	ClientID     string       `json:"clientId,omitempty" msgpack:"clientId,omitempty"`
	Name         string       `json:"name,omitempty" msgpack:"name,omitempty"`
	Color        string       `json:"color,omitempty" msgpack:"color,omitempty"`
	Result       string       `json:"result,omitempty" msgpack:"result,omitempty"`
	Message      string       `json:"message,omitempty" msgpack:"message,omitempty"`
	Clients      []ClientInfo `json:"clients,omitempty" msgpack:"clients,omitempty"`
}

// ClientInfo describes a connected user.
type ClientInfo struct {
	ID    string `json:"id" msgpack:"id"`
	Name  string `json:"name" msgpack:"name"`
	Color string `json:"color" msgpack:"color"`
}

// stateMessage builds the full snapshot sent on join and on resync.
func stateMessage(collectionID string, s ot.ListState[any]) ServerMessage {
	return ServerMessage{
		Type:         MsgState,
		CollectionID: collectionID,
		Items:        s.Items(),
		Revision:     s.Version(),
	}
}
