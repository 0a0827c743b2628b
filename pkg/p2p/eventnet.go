// Package p2p fans committed venue events out to observer nodes over libp2p
// GossipSub. This is replication of already-committed facts, not ordering:
// the single operator node remains the writer, observers mirror its event
// stream and settlement attestations.
package p2p

import (
	"context"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/venue"
)

const (
	topicEvents      = "pfx-events"
	topicSettlements = "pfx-settlements"
)

type Config struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
}

// EventNet joins the venue gossip topics. Set the On* callbacks before
// traffic flows; they run on the subscription reader goroutines.
type EventNet struct {
	h   host.Host
	ps  *pubsub.PubSub
	log *zap.SugaredLogger

	tEvents, tSettlements     *pubsub.Topic
	subEvents, subSettlements *pubsub.Subscription

	OnRemoteEvent      func(venue.Event)
	OnRemoteSettlement func(SettlementWire)
}

func NewEventNet(ctx context.Context, cfg Config) (*EventNet, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}

	n := &EventNet{h: h, ps: ps, log: cfg.Logger}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}
	if err := n.joinTopics(ctx); err != nil {
		return nil, err
	}

	go n.readEvents(ctx)
	go n.readSettlements(ctx)

	if cfg.Logger != nil {
		cfg.Logger.Infow("p2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return n, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (n *EventNet) joinTopics(ctx context.Context) error {
	var err error
	if n.tEvents, err = n.ps.Join(topicEvents); err != nil {
		return err
	}
	if n.tSettlements, err = n.ps.Join(topicSettlements); err != nil {
		return err
	}
	if n.subEvents, err = n.tEvents.Subscribe(); err != nil {
		return err
	}
	if n.subSettlements, err = n.tSettlements.Subscribe(); err != nil {
		return err
	}
	return nil
}

func (n *EventNet) Host() host.Host { return n.h }

// PublishEvent gossips one committed event. Wired as an OnEvent sink.
func (n *EventNet) PublishEvent(ctx context.Context, e venue.Event) error {
	eb, err := gobEncode(e)
	if err != nil {
		return err
	}
	data, err := gobEncode(EventWire{Event: eb})
	if err != nil {
		return err
	}
	return n.tEvents.Publish(ctx, data)
}

// PublishSettlement gossips an attested settlement digest.
func (n *EventNet) PublishSettlement(ctx context.Context, w SettlementWire) error {
	data, err := gobEncode(w)
	if err != nil {
		return err
	}
	return n.tSettlements.Publish(ctx, data)
}

func (n *EventNet) readEvents(ctx context.Context) {
	for {
		msg, err := n.subEvents.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == n.h.ID() {
			continue
		}
		var wire EventWire
		if err := gobDecode(msg.Data, &wire); err != nil {
			if n.log != nil {
				n.log.Warnw("event_decode_failed", "err", err)
			}
			continue
		}
		var e venue.Event
		if err := gobDecode(wire.Event, &e); err != nil {
			continue
		}
		if n.OnRemoteEvent != nil {
			n.OnRemoteEvent(e)
		}
	}
}

func (n *EventNet) readSettlements(ctx context.Context) {
	for {
		msg, err := n.subSettlements.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == n.h.ID() {
			continue
		}
		var wire SettlementWire
		if err := gobDecode(msg.Data, &wire); err != nil {
			continue
		}
		if n.OnRemoteSettlement != nil {
			n.OnRemoteSettlement(wire)
		}
	}
}

func (n *EventNet) Close() error {
	n.subEvents.Cancel()
	n.subSettlements.Cancel()
	return n.h.Close()
}
