package event

import (
	"context"
	"testing"
	"time"

	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
)

// 停止後のpublishはpanicせずイベントを落とす
func TestPublisherPublishAfterShutdown(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "events", "test", 4)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	p.WaitClosed()

	assert.NotPanics(t, func() {
		p.PublishOrderStatusChanged(usecase.OrderStatusChangedEvent{OrderID: 1, Timestamp: time.Now()})
	})
}

func TestPublisherDoubleClose(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "events", "test", 4)

	assert.NotPanics(t, func() {
		p.Close()
		p.Close()
	})
}
