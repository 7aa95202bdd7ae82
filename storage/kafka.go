package storage

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/Shopify/sarama"

	"github.com/lwansbrough/craft2/craft"
)

// KafkaMaxMessageSize is the max message size in bytes for a Kafka message.
const KafkaMaxMessageSize = 980 * craft.Kilo

// KafkaConfig is the [kafka] section of the server configuration.  Events are published
// only when Servers is non-empty.
type KafkaConfig struct {
	Topic      string
	Servers    []string
	BufferSize int `toml:"buffer_size"`
}

// Event describes a change to a stored or live volume.
type Event struct {
	Action string `json:"action"` // "create", "voxels", "palette", "snapshot", "delete"
	Volume string `json:"volume"`
	Voxels int    `json:"voxels,omitempty"`
	Grids  int    `json:"grids,omitempty"`
	Time   int64  `json:"time"`
}

// EventPublisher sends volume events to a Kafka topic.  A nil *EventPublisher discards
// events.
type EventPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	done     chan struct{}
}

var badTopicChars = regexp.MustCompile(`[^a-zA-Z0-9\._\-]+`)

// DefaultTopic returns the topic used when none is configured.
func DefaultTopic(hostID string) string {
	return badTopicChars.ReplaceAllString("craft2-volumes-"+hostID, "-")
}

// NewEventPublisher connects to the configured Kafka servers.  It returns nil without error
// if no servers are configured.
func NewEventPublisher(kc KafkaConfig, hostID string) (*EventPublisher, error) {
	if len(kc.Servers) == 0 {
		return nil, nil
	}
	config := sarama.NewConfig()
	config.Producer.MaxMessageBytes = KafkaMaxMessageSize
	if kc.BufferSize > 0 {
		config.ChannelBufferSize = kc.BufferSize
	}
	producer, err := sarama.NewAsyncProducer(kc.Servers, config)
	if err != nil {
		return nil, err
	}
	topic := kc.Topic
	if topic == "" {
		topic = DefaultTopic(hostID)
	}
	craft.Infof("Kafka topic for volume events: %s\n", topic)
	return NewEventPublisherWithProducer(producer, topic), nil
}

// NewEventPublisherWithProducer publishes through an existing producer.
func NewEventPublisherWithProducer(producer sarama.AsyncProducer, topic string) *EventPublisher {
	p := &EventPublisher{
		producer: producer,
		topic:    topic,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		for err := range producer.Errors() {
			craft.Errorf("error on kafka send to topic %q: %v\n", p.topic, err)
		}
	}()
	return p
}

// Publish queues an event keyed by volume name.  The send itself is asynchronous and
// failures are logged.
func (p *EventPublisher) Publish(e Event) error {
	if p == nil {
		return nil
	}
	if e.Time == 0 {
		e.Time = time.Now().Unix()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.Volume),
		Value: sarama.ByteEncoder(value),
	}
	return nil
}

// Close flushes queued events and stops the producer.
func (p *EventPublisher) Close() error {
	if p == nil {
		return nil
	}
	err := p.producer.Close()
	<-p.done
	if err != nil {
		craft.Errorf("Kafka producer had error on close: %v\n", err)
		return err
	}
	craft.Infof("Kafka producer shut down.\n")
	return nil
}
