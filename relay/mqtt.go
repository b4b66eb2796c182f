package relay

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const qosLevel = 1

// MQTTConfig configures an MQTTPublisher.
type MQTTConfig struct {
	BrokerURL   string
	TopicPrefix string // events go to <TopicPrefix>/<collection id>
	ClientID    string // generated when empty
	QueueSize   int
}

// MQTTPublisher publishes events to an MQTT broker. Events are queued and
// sent by a single goroutine, in order.
type MQTTPublisher struct {
	cfg    MQTTConfig
	cm     *autopaho.ConnectionManager
	queue  chan Event
	logger *zap.Logger
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewMQTTPublisher connects to the broker and waits until the first
// connection is up or ctx is done.
func NewMQTTPublisher(ctx context.Context, cfg MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mqtt")
	u, err := url.Parse(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "collections"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "collab-list-" + uuid.NewString()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cliCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		KeepAlive:                     20,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(*autopaho.ConnectionManager, *paho.Connack) {
			logger.Info("connection up", zap.String("broker", cfg.BrokerURL))
		},
		OnConnectError: func(err error) {
			logger.Warn("connection attempt failed", zap.Error(err))
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.ClientID,
			OnClientError: func(err error) {
				logger.Error("client error", zap.Error(err))
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				if d.Properties != nil {
					logger.Warn("server requested disconnect", zap.String("reason", d.Properties.ReasonString))
				} else {
					logger.Warn("server requested disconnect", zap.Uint8("code", d.ReasonCode))
				}
			},
		},
	}

	cm, err := autopaho.NewConnection(runCtx, cliCfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("mqtt await connection: %w", err)
	}

	p := &MQTTPublisher{
		cfg:    cfg,
		cm:     cm,
		queue:  make(chan Event, cfg.QueueSize),
		logger: logger,
		ctx:    runCtx,
		cancel: cancel,
	}
	p.wg.Add(1)
	go p.run()
	return p, nil
}

// Topic returns the topic events for a collection are published on.
func (p *MQTTPublisher) Topic(collectionID string) string {
	return p.cfg.TopicPrefix + "/" + collectionID
}

// Publish queues e. It never blocks; a full queue drops the event.
func (p *MQTTPublisher) Publish(_ context.Context, e Event) error {
	select {
	case p.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *MQTTPublisher) run() {
	defer p.wg.Done()
	for e := range p.queue {
		payload, err := e.Marshal()
		if err != nil {
			p.logger.Error("encode event", zap.String("collection", e.CollectionID), zap.Error(err))
			continue
		}
		if _, err := p.cm.Publish(p.ctx, &paho.Publish{
			QoS:     qosLevel,
			Topic:   p.Topic(e.CollectionID),
			Payload: payload,
		}); err != nil {
			if p.ctx.Err() != nil {
				return
			}
			p.logger.Error("publish event",
				zap.String("collection", e.CollectionID), zap.Int("version", e.Version), zap.Error(err))
		}
	}
}

// Close drains the queue, then disconnects from the broker. Publish must
// not be called after Close.
func (p *MQTTPublisher) Close(ctx context.Context) error {
	close(p.queue)
	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
	}
	err := p.cm.Disconnect(ctx)
	p.cancel()
	return err
}
