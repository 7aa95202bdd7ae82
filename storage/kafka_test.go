package storage_test

import (
	"encoding/json"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"

	"github.com/lwansbrough/craft2/storage"
)

func TestEventPublisher(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, nil)
	producer.ExpectInputWithCheckerFunctionAndSucceed(func(value []byte) error {
		var e storage.Event
		if err := json.Unmarshal(value, &e); err != nil {
			return err
		}
		if e.Action != "voxels" || e.Volume != "terrain" || e.Voxels != 3 || e.Time == 0 {
			t.Errorf("unexpected event %+v", e)
		}
		return nil
	})
	producer.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	p := storage.NewEventPublisherWithProducer(producer, "craft2-test")
	if err := p.Publish(storage.Event{Action: "voxels", Volume: "terrain", Voxels: 3}); err != nil {
		t.Fatal(err)
	}
	if err := p.Publish(storage.Event{Action: "delete", Volume: "terrain"}); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestNilEventPublisher(t *testing.T) {
	p, err := storage.NewEventPublisher(storage.KafkaConfig{}, "host")
	if err != nil || p != nil {
		t.Fatalf("expected nil publisher without servers, got %v %v", p, err)
	}
	if err := p.Publish(storage.Event{Action: "create", Volume: "x"}); err != nil {
		t.Error(err)
	}
	if err := p.Close(); err != nil {
		t.Error(err)
	}
	if got := storage.DefaultTopic("my host:8000"); got != "craft2-volumes-my-host-8000" {
		t.Errorf("unexpected topic %q", got)
	}
}
