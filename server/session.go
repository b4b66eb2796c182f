package server

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/alimasry/go-collab-list/ot"
	"github.com/alimasry/go-collab-list/relay"
	"github.com/alimasry/go-collab-list/store"
)

type opMessage struct {
	client *Client
	msg    ClientMessage
}

// Session manages collaboration for a single collection.
// All operations are serialized through a single goroutine, which is the
// only writer of list.
type Session struct {
	collectionID string
	list         *ot.SyncList[any]
	store        store.CollectionStore
	relay        relay.Publisher
	logger       *zap.Logger
	clients      mapset.Set[*Client]

	incoming chan opMessage
	join     chan *Client
	leave    chan *Client
	stop     chan struct{}
	done     chan struct{}
}

func newSession(collectionID string, list *ot.SyncList[any], st store.CollectionStore, pub relay.Publisher, logger *zap.Logger) *Session {
	if pub == nil {
		pub = relay.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		collectionID: collectionID,
		list:         list,
		store:        st,
		relay:        pub,
		logger:       logger.With(zap.String("collection", collectionID)),
		clients:      mapset.NewThreadUnsafeSet[*Client](),
		incoming:     make(chan opMessage, 64),
		join:         make(chan *Client, 16),
		leave:        make(chan *Client, 16),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Run is the session's main loop. It serializes all operations.
func (s *Session) Run() {
	defer close(s.done)
	for {
		select {
		case c := <-s.join:
			s.handleJoin(c)
		case c := <-s.leave:
			s.handleLeave(c)
		case om := <-s.incoming:
			s.handleOp(om)
		case <-s.stop:
			return
		}
	}
}

// State returns the current snapshot. Safe from any goroutine.
func (s *Session) State() ot.ListState[any] {
	return s.list.CurrentState()
}

func (s *Session) handleJoin(c *Client) {
	s.clients.Add(c)
	connectedClients.Inc()
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	// Send current state to the joining client.
	msg := stateMessage(s.collectionID, s.list.CurrentState())
	msg.Clients = s.clientInfos()
	c.sendMsg(msg)

	// Notify other clients about the new user.
	s.broadcast(c, ServerMessage{
		Type:     MsgJoin,
		ClientID: c.ID,
		Name:     c.Name,
		Color:    c.Color,
	})
}

func (s *Session) handleLeave(c *Client) {
	if !s.clients.Contains(c) {
		return
	}
	s.clients.Remove(c)
	connectedClients.Dec()
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	close(c.send)

	s.broadcast(nil, ServerMessage{Type: MsgLeave, ClientID: c.ID})
}

func (s *Session) handleOp(om opMessage) {
	w := om.msg.Op
	if w == nil {
		om.client.sendError("missing op")
		return
	}
	if w.Kind == OpReset {
		s.handleReset(om.client, w.Items)
		return
	}
	op, err := w.Operation()
	if err != nil {
		om.client.sendError(err.Error())
		return
	}

	rebased, result := s.list.ProcessOperation(op, om.msg.Revision)
	operationsProcessed.WithLabelValues(op.Kind.String(), result.String()).Inc()

	switch result {
	case ot.Successful:
		s.commit(om.client, rebased)
	case ot.DiscardOperation:
		om.client.sendMsg(ServerMessage{
			Type:     MsgDiscard,
			Revision: s.list.Version(),
		})
	case ot.OutOfOperationalRange:
		s.logger.Info("client behind history window, resyncing",
			zap.String("client", om.client.ID),
			zap.Int("base", om.msg.Revision),
			zap.Int("min", s.list.MinValidVersion()))
		resyncs.Inc()
		om.client.sendMsg(stateMessage(s.collectionID, s.list.CurrentState()))
	default:
		s.logger.Debug("operation rejected",
			zap.String("client", om.client.ID),
			zap.Stringer("op", op),
			zap.Int("base", om.msg.Revision),
			zap.Stringer("result", result))
		om.client.sendMsg(ServerMessage{
			Type:     MsgReject,
			Revision: s.list.Version(),
			Result:   result.String(),
			Message:  "operation rejected: " + result.String(),
		})
	}
}

// commit persists and propagates an operation the list just accepted.
func (s *Session) commit(sender *Client, op ot.Operation[any]) {
	state := s.list.CurrentState()
	version := state.Version()

	ctx := context.Background()
	err := multierr.Combine(
		s.store.UpdateItems(ctx, s.collectionID, state.Items(), version),
		s.store.AppendOperation(ctx, s.collectionID, store.OperationRecord{Version: version, Op: op}),
	)
	if err != nil {
		s.logger.Error("persist operation", zap.Int("version", version), zap.Error(err))
	}

	// Ack the sender.
	sender.sendMsg(ServerMessage{Type: MsgAck, Revision: version})

	// Broadcast the rebased operation to everyone else.
	s.broadcast(sender, ServerMessage{
		Type:         MsgOp,
		CollectionID: s.collectionID,
		Revision:     version,
		Op:           wireOp(op),
		ClientID:     sender.ID,
	})

	s.publish(relay.Event{
		ClientID: sender.ID,
		Version:  version,
		Kind:     op.Kind.String(),
		Index:    op.Index,
		From:     op.From,
		To:       op.To,
		Value:    op.Value,
	})
}

// handleReset replaces the collection wholesale. Everyone, the sender
// included, gets the new state.
func (s *Session) handleReset(sender *Client, items []any) {
	version := s.list.Version() + 1
	if err := s.list.ResetTo(items, version); err != nil {
		sender.sendError(err.Error())
		return
	}
	operationsProcessed.WithLabelValues(OpReset, ot.Successful.String()).Inc()
	state := s.list.CurrentState()

	if err := s.store.UpdateItems(context.Background(), s.collectionID, state.Items(), version); err != nil {
		s.logger.Error("persist reset", zap.Int("version", version), zap.Error(err))
	}

	msg := stateMessage(s.collectionID, state)
	msg.ClientID = sender.ID
	s.broadcast(nil, msg)

	s.publish(relay.Event{
		ClientID: sender.ID,
		Version:  version,
		Kind:     OpReset,
		Items:    state.Items(),
	})
}

func (s *Session) publish(e relay.Event) {
	e.CollectionID = s.collectionID
	e.At = time.Now()
	if err := s.relay.Publish(context.Background(), e); err != nil {
		s.logger.Warn("relay publish", zap.Int("version", e.Version), zap.Error(err))
	}
}

// broadcast sends msg to every client except skip.
func (s *Session) broadcast(skip *Client, msg ServerMessage) {
	s.clients.Each(func(c *Client) bool {
		if c != skip {
			c.sendMsg(msg)
		}
		return false
	})
}

func (s *Session) clientInfos() []ClientInfo {
	infos := make([]ClientInfo, 0, s.clients.Cardinality())
	s.clients.Each(func(c *Client) bool {
		infos = append(infos, c.Info())
		return false
	})
	return infos
}
