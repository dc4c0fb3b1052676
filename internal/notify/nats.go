package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// publisher — то, что нужно от *nats.Conn.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NatsPublisher шлёт события JSON'ом в subject <prefix>.<type>.
type NatsPublisher struct {
	conn   publisher
	prefix string
	close  func() error
}

func ConnectNats(url, prefix string) (*NatsPublisher, error) {
	opts := []nats.Option{
		nats.Name("designer"),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("server", nc.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info().Str("server", nc.ConnectedUrl()).Msg("Connected to NATS")

	p := newNatsPublisher(nc, prefix)
	p.close = nc.Drain
	return p, nil
}

func newNatsPublisher(conn publisher, prefix string) *NatsPublisher {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		prefix = "designer"
	}
	return &NatsPublisher{conn: conn, prefix: prefix}
}

func (p *NatsPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *NatsPublisher) Notify(_ context.Context, ev Event) error {
	ev = stamp(ev)
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(ev.Type), data); err != nil {
		log.Error().Err(err).Str("subject", p.Subject(ev.Type)).Msg("Error publishing notification")
		return err
	}
	return nil
}

func (p *NatsPublisher) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}
