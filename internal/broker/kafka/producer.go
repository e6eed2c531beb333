package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BearBump/ColdTrack/internal/broker/messages"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	w     *kafka.Writer
	topic string
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
		topic: topic,
	}
}

// PublishAlert serializes one excursion alert keyed by shipment id, so all
// alerts for a shipment land in the same partition in order.
func (p *Producer) PublishAlert(ctx context.Context, a messages.TemperatureAlert) error {
	b, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "marshal alert")
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(fmt.Sprintf("%d", a.ShipmentID)),
		Value: b,
	}); err != nil {
		return errors.Wrap(err, "kafka publish")
	}
	return nil
}

func (p *Producer) Close() error {
	return p.w.Close()
}
