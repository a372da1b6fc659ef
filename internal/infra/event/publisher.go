package event

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"app/internal/usecase"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	typeOrderStatusChanged   = "OrderStatusChanged"
	typeWalletBalanceChanged = "WalletBalanceChanged"
)

// Envelope はイベントの共通ヘッダ
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
	Payload    json.RawMessage `json:"payload"`
}

// KafkaPublisher は非同期でイベントを送る。
// 送信失敗で業務処理を止めない（通知は外部責務）
type KafkaPublisher struct {
	w        *kafka.Writer
	producer string

	mu     sync.Mutex
	closed bool
	inbox  chan kafka.Message

	closeCh chan struct{}
}

func NewKafkaPublisher(brokers []string, topic string, producer string, buf int) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		producer: producer,
		inbox:    make(chan kafka.Message, buf),
		closeCh:  make(chan struct{}),
	}
}

func (p *KafkaPublisher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				p.closeInbox()
				for m := range p.inbox {
					_ = p.w.WriteMessages(context.Background(), m)
				}
				_ = p.w.Close()
				close(p.closeCh)
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					close(p.closeCh)
					return
				}
				if err := p.w.WriteMessages(context.Background(), m); err != nil {
					log.Printf("event publish failed: %v", err)
				}
			}
		}
	}()
}

func (p *KafkaPublisher) PublishOrderStatusChanged(ev usecase.OrderStatusChangedEvent) {
	p.publish(strconv.FormatInt(ev.OrderID, 10), typeOrderStatusChanged, ev)
}

func (p *KafkaPublisher) PublishWalletBalanceChanged(ev usecase.WalletBalanceChangedEvent) {
	p.publish(strconv.FormatInt(ev.WalletID, 10), typeWalletBalanceChanged, ev)
}

func (p *KafkaPublisher) publish(key string, eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("event marshal failed: %v", err)
		return
	}
	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now(),
		Producer:   p.producer,
		Payload:    raw,
	}
	value, err := json.Marshal(env)
	if err != nil {
		log.Printf("event marshal failed: %v", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		// 停止中に届いたイベントは落とす（closeとsendの競合でpanicしない）
		log.Printf("publisher closed, dropped %s", eventType)
		return
	}
	select {
	case p.inbox <- kafka.Message{Key: []byte(key), Value: value, Time: time.Now()}:
	default:
		// バッファ満杯ならイベントは落とす。台帳の正はDB
		log.Printf("event inbox full, dropped %s", eventType)
	}
}

// closeInbox はフラグ付きで1回だけ閉じる。ctxキャンセルとCloseのどちらが先でも安全
func (p *KafkaPublisher) closeInbox() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

func (p *KafkaPublisher) Close()      { p.closeInbox() }
func (p *KafkaPublisher) WaitClosed() { <-p.closeCh }
