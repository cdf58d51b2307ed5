package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink produces each event as a JSON record keyed by subject, so all
// events for one person land on the same partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to brokers and makes sure topic exists.
func NewKafkaSink(ctx context.Context, brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := EnsureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

// EnsureTopic creates topic with one partition when it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, 1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, r := range resps {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (k *KafkaSink) Append(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(e.Subject),
		Value: value,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes buffered records and closes the client.
func (k *KafkaSink) Close() {
	k.client.Close()
}
