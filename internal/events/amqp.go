package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/goroutine"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
)

const (
	publishTimeout    = 5 * time.Second
	dialTimeout       = 5 * time.Second
	reconnectInterval = 5 * time.Second
)

// ErrBrokerUnavailable возвращается, пока соединение с брокером восстанавливается.
var ErrBrokerUnavailable = errors.New("events: брокер недоступен")

var errPublisherClosed = errors.New("events: publisher закрыт")

// publishChannel - часть amqp091.Channel, нужная для публикации.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	NotifyClose(receiver chan *amqp091.Error) chan *amqp091.Error
	IsClosed() bool
	Close() error
}

// connector открывает соединение и канал с объявленным exchange.
type connector func() (publishChannel, io.Closer, error)

// AMQPPublisher публикует события в topic exchange RabbitMQ и переподключается после обрыва.
type AMQPPublisher struct {
	mu           sync.Mutex
	connect      connector
	conn         io.Closer
	channel      publishChannel
	exchange     string
	retry        time.Duration
	reconnecting bool
	closed       bool
	done         chan struct{}
	log          *logrus.Entry
}

// NewAMQPPublisher подключается к брокеру и объявляет exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	return newPublisher(exchange, dialAMQP(url, exchange), reconnectInterval)
}

func newPublisher(exchange string, connect connector, retry time.Duration) (*AMQPPublisher, error) {
	ch, conn, err := connect()
	if err != nil {
		return nil, err
	}

	p := &AMQPPublisher{
		connect:  connect,
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		retry:    retry,
		done:     make(chan struct{}),
		log:      logger.WithComponent("events"),
	}
	p.watch(ch)
	return p, nil
}

func dialAMQP(url, exchange string) connector {
	return func() (publishChannel, io.Closer, error) {
		conn, err := amqp091.DialConfig(url, amqp091.Config{Dial: amqp091.DefaultDial(dialTimeout)})
		if err != nil {
			return nil, nil, fmt.Errorf("events: подключение к rabbitmq: %w", err)
		}

		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("events: открытие канала: %w", err)
		}

		if err := ch.ExchangeDeclare(
			exchange, // name
			"topic",  // type
			true,     // durable
			false,    // auto-deleted
			false,    // internal
			false,    // no-wait
			nil,      // arguments
		); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, fmt.Errorf("events: объявление exchange %s: %w", exchange, err)
		}

		return ch, conn, nil
	}
}

// Publish отправляет событие с ключом маршрутизации event.Type.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// amqp091.Channel не безопасен для параллельной публикации
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errPublisherClosed
	}
	if p.channel == nil || p.channel.IsClosed() {
		p.startReconnect()
		return fmt.Errorf("events: publish %s: %w", event.Type, ErrBrokerUnavailable)
	}

	if err := p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		event.Type, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			MessageId:    event.ID.String(),
			Type:         event.Type,
			Body:         body,
			Timestamp:    event.OccurredAt,
		}); err != nil {
		if p.channel.IsClosed() {
			p.startReconnect()
		}
		return fmt.Errorf("events: publish %s: %w", event.Type, err)
	}

	p.log.WithFields(logrus.Fields{
		"event_id": event.ID,
		"type":     event.Type,
	}).Debug("event published")
	return nil
}

// watch запускает переподключение, когда брокер закрывает канал.
func (p *AMQPPublisher) watch(ch publishChannel) {
	closed := ch.NotifyClose(make(chan *amqp091.Error, 1))
	goroutine.SafeGo(func() {
		select {
		case amqpErr := <-closed:
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.closed || p.channel != ch {
				return
			}
			entry := p.log
			if amqpErr != nil {
				entry = entry.WithField("error", amqpErr.Error())
			}
			entry.Warn("events: соединение с rabbitmq потеряно")
			p.startReconnect()
		case <-p.done:
		}
	})
}

// startReconnect вызывается под p.mu.
func (p *AMQPPublisher) startReconnect() {
	if p.reconnecting || p.closed {
		return
	}
	p.reconnecting = true
	goroutine.SafeGo(p.reconnectLoop)
}

func (p *AMQPPublisher) reconnectLoop() {
	ticker := time.NewTicker(p.retry)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}

		ch, conn, err := p.connect()
		if err != nil {
			p.log.WithField("error", err.Error()).Warn("events: не удалось переподключиться к rabbitmq")
			continue
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			_ = ch.Close()
			_ = conn.Close()
			return
		}
		old := p.conn
		p.channel, p.conn = ch, conn
		p.reconnecting = false
		p.watch(ch)
		p.mu.Unlock()

		if old != nil {
			_ = old.Close()
		}
		p.log.Info("events: соединение с rabbitmq восстановлено")
		return
	}
}

// Close закрывает канал и соединение и останавливает переподключение.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	ch, conn := p.channel, p.conn
	p.mu.Unlock()

	var err error
	if ch != nil && !ch.IsClosed() {
		err = ch.Close()
	}
	if conn != nil {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, amqp091.ErrClosed) && err == nil {
			err = cerr
		}
	}
	return err
}
