// Package dhtswarm is the DHT-discovery transport: a libp2p host, a
// Kademlia DHT for peer discovery, and a gossipsub topic derived from the
// sync key, per spec.md §4.6/§6.4 enableSync. Connection identity here is
// the remote peer's public key hex (spec.md §4.6), unlike the other two
// transports which use a best-effort connection index.
package dhtswarm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"

	"github.com/nodeweave/peerdb/internal/config"
	"github.com/nodeweave/peerdb/internal/transport"
)

var errExhausted = errors.New("dhtswarm: one-shot connection already delivered its message")

// Swarm wraps a libp2p host plus the DHT and pubsub state for exactly one
// sync key at a time; disableSync tears it down and enableSync with a new
// key builds a fresh one (spec.md §6.4: enableSync/disableSync toggle the
// whole transport, they don't layer).
type Swarm struct {
	host   host.Host
	dht    *dht.IpfsDHT
	pubsub *pubsub.PubSub
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	cancel context.CancelFunc
}

// Join validates key against spec.md §4.6's /^[0-9a-f]{64}$/ pattern,
// derives the topic name from its SHA-256 hash, starts a libp2p host,
// bootstraps the Kademlia DHT, and subscribes to the derived topic.
// onAccept is called once per inbound pubsub message, wrapped as a
// Connection whose ID is the hex-encoded public key of the peer the
// message was received from (its peer ID string if the key cannot be
// extracted from that ID).
func Join(ctx context.Context, key string, onAccept func(*transport.Connection)) (*Swarm, error) {
	if !config.ValidSyncKey(key) {
		return nil, fmt.Errorf("dhtswarm: invalid sync key %q", key)
	}

	h, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/0.0.0.0/tcp/0"))
	if err != nil {
		return nil, fmt.Errorf("dhtswarm: create host: %w", err)
	}

	kad, err := dht.New(ctx, h, dht.Mode(dht.ModeAuto))
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("dhtswarm: create dht: %w", err)
	}
	if err := kad.Bootstrap(ctx); err != nil {
		h.Close()
		return nil, fmt.Errorf("dhtswarm: bootstrap dht: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("dhtswarm: create pubsub: %w", err)
	}

	topicName := deriveTopic(key)
	topic, err := ps.Join(topicName)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("dhtswarm: join topic %s: %w", topicName, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("dhtswarm: subscribe topic %s: %w", topicName, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s := &Swarm{host: h, dht: kad, pubsub: ps, topic: topic, sub: sub, cancel: cancel}

	go s.readLoop(loopCtx, onAccept)

	return s, nil
}

// readLoop hands every inbound pubsub message to onAccept as a one-shot
// Connection whose Send re-publishes to the same topic and whose Receive
// immediately returns the message it was built from — pubsub has no
// per-peer duplex stream, so this transport models each message as its
// own ephemeral connection rather than a long-lived one.
func (s *Swarm) readLoop(ctx context.Context, onAccept func(*transport.Connection)) {
	self := s.host.ID()
	for {
		msg, err := s.sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == self {
			continue
		}

		var envelope transport.Message
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			continue
		}

		// delivered carries the single envelope exactly once; the second
		// Receive call returns errExhausted so the fabric's receive loop
		// exits and drops this one-shot connection, instead of spinning
		// or leaking a goroutine blocked forever — pubsub hands us one
		// message per callback, not a stream to keep reading from.
		delivered := make(chan transport.Message, 1)
		delivered <- envelope
		exhausted := false

		connID := msg.ReceivedFrom.String()
		if pub, err := msg.ReceivedFrom.ExtractPublicKey(); err == nil {
			if raw, err := crypto.MarshalPublicKey(pub); err == nil {
				connID = hex.EncodeToString(raw)
			}
		}

		onAccept(&transport.Connection{
			ID: connID,
			Send: func(m transport.Message) error {
				data, err := json.Marshal(m)
				if err != nil {
					return err
				}
				return s.topic.Publish(ctx, data)
			},
			Receive: func(context.Context) (transport.Message, error) {
				if exhausted {
					return transport.Message{}, errExhausted
				}
				exhausted = true
				return <-delivered, nil
			},
			Close: func() error { return nil },
		})
	}
}

// Publish broadcasts msg to the swarm's topic directly, outside any
// Connection. The replication fabric does not call it: the fabric's own
// broadcasts go only to the connections currently in its map.
func (s *Swarm) Publish(ctx context.Context, msg transport.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.topic.Publish(ctx, data)
}

// PeerIDHex returns this host's libp2p peer ID in its standard string
// form. The connection identity used by this transport is the public key
// hex, which PublicKeyHex returns.
func (s *Swarm) PeerIDHex() string {
	return s.host.ID().String()
}

// PublicKeyHex returns the host identity's public key, hex-encoded.
func (s *Swarm) PublicKeyHex() (string, error) {
	pub := s.host.Peerstore().PubKey(s.host.ID())
	raw, err := crypto.MarshalPublicKey(pub)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func (s *Swarm) Close() error {
	s.cancel()
	s.sub.Cancel()
	if err := s.dht.Close(); err != nil {
		return err
	}
	return s.host.Close()
}

func deriveTopic(key string) string {
	raw, _ := hex.DecodeString(key) // key already passed ValidSyncKey
	sum := sha256.Sum256(raw)
	return "peerdb/sync/" + hex.EncodeToString(sum[:])
}
