package amqp

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/sensebox/ttn-osem-integration/internal/backend"
	"github.com/sensebox/ttn-osem-integration/internal/backend/marshaler"
	"github.com/sensebox/ttn-osem-integration/internal/config"
	"github.com/sensebox/ttn-osem-integration/internal/models"
)

var errDeliveriesClosed = errors.New("deliveries channel closed by server")

// Backend implements an AMQP uplink backend.
type Backend struct {
	chPool *pool

	uplinkQueueName  string
	uplinkRoutingKey string

	uplinkChan chan models.Uplink
	done       chan struct{}
}

// NewBackend creates a new Backend.
func NewBackend(c config.Config) (backend.Uplink, error) {
	var err error
	conf := c.Integration.Backend.AMQP

	b := Backend{
		uplinkQueueName:  conf.UplinkQueueName,
		uplinkRoutingKey: conf.UplinkRoutingKey,
		uplinkChan:       make(chan models.Uplink),
		done:             make(chan struct{}),
	}

	log.Info("integration/amqp: connecting to AMQP server")
	b.chPool, err = newPool(10, conf.URL)
	if err != nil {
		return nil, errors.Wrap(err, "new amqp channel pool error")
	}

	if err := b.setupQueue(); err != nil {
		return nil, errors.Wrap(err, "integration/amqp: setup queue error")
	}

	go b.eventLoop()

	return &b, nil
}

// UplinkChan returns the uplink channel.
func (b *Backend) UplinkChan() chan models.Uplink {
	return b.uplinkChan
}

// Close closes the backend.
func (b *Backend) Close() error {
	log.Info("integration/amqp: closing backend")
	err := b.chPool.close()
	<-b.done
	close(b.uplinkChan)
	return err
}

func (b *Backend) setupQueue() error {
	ch, err := b.chPool.get()
	if err != nil {
		return errors.Wrap(err, "open channel error")
	}
	defer ch.close()

	_, err = ch.ch.QueueDeclare(
		b.uplinkQueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrap(err, "declare queue error")
	}

	err = ch.ch.QueueBind(
		b.uplinkQueueName,
		b.uplinkRoutingKey,
		"amq.topic",
		false,
		nil,
	)
	if err != nil {
		return errors.Wrap(err, "bind queue error")
	}

	return nil
}

func (b *Backend) eventLoop() {
	defer close(b.done)

	for {
		err := func() error {
			ch, err := b.chPool.get()
			if err != nil {
				return errors.Wrap(err, "get amqp channel from pool error")
			}
			defer ch.close()

			log.Info("integration/amqp: start consuming uplink events")

			msgs, err := ch.ch.Consume(
				b.uplinkQueueName,
				"",
				true,
				false,
				false,
				false,
				nil,
			)
			if err != nil {
				ch.markUnusable()
				return errors.Wrap(err, "register consumer error")
			}

			for msg := range msgs {
				routing := strings.Split(msg.RoutingKey, ".")
				typ := routing[len(routing)-1]
				amqpEventCounter(typ).Inc()

				if typ != "up" {
					log.WithFields(log.Fields{
						"routing_key": msg.RoutingKey,
						"type":        typ,
					}).Debug("integration/amqp: ignoring event")
					continue
				}

				if err := b.handleUplink(msg); err != nil {
					log.WithError(err).WithFields(log.Fields{
						"routing_key": msg.RoutingKey,
					}).Error("integration/amqp: handle uplink error")
				}
			}

			ch.markUnusable()
			return b.deliveriesClosedError()
		}()
		if err != nil {
			if errors.Cause(err) == errClosed {
				break
			}

			log.WithError(err).Error("integration/amqp: event loop error")
			time.Sleep(time.Second)
		}
	}
}

// deliveriesClosedError returns errClosed when the deliveries channel was
// closed by Close, errDeliveriesClosed when it was closed by the server.
func (b *Backend) deliveriesClosedError() error {
	if b.chPool.isClosed() {
		return errClosed
	}
	return errDeliveriesClosed
}

func (b *Backend) handleUplink(msg amqp.Delivery) error {
	uplink, t, err := marshaler.UnmarshalUplink(msg.Body)
	if err != nil {
		return errors.Wrap(err, "unmarshal error")
	}

	log.WithFields(log.Fields{
		"app_id": uplink.AppID,
		"dev_id": uplink.DevID,
		"type":   t,
	}).Info("integration/amqp: uplink event received")

	b.uplinkChan <- uplink

	return nil
}
