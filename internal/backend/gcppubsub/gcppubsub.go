package gcppubsub

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/sensebox/ttn-osem-integration/internal/backend"
	"github.com/sensebox/ttn-osem-integration/internal/backend/marshaler"
	"github.com/sensebox/ttn-osem-integration/internal/config"
	"github.com/sensebox/ttn-osem-integration/internal/models"
)

// Backend implements a Google Cloud Pub/Sub uplink backend.
type Backend struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	client             *pubsub.Client
	uplinkSubscription *pubsub.Subscription

	uplinkChan chan models.Uplink
}

// NewBackend creates a new Backend.
func NewBackend(c config.Config) (backend.Uplink, error) {
	conf := c.Integration.Backend.GCPPubSub

	b := Backend{
		uplinkChan: make(chan models.Uplink),
	}
	var err error
	var o []option.ClientOption

	b.ctx, b.cancel = context.WithCancel(context.Background())

	if conf.CredentialsFile != "" {
		o = append(o, option.WithCredentialsFile(conf.CredentialsFile))
	}

	log.Info("integration/gcp_pub_sub: setting up client")
	b.client, err = pubsub.NewClient(b.ctx, conf.ProjectID, o...)
	if err != nil {
		return nil, errors.Wrap(err, "integration/gcp_pub_sub: new pubsub client error")
	}

	log.WithField("subscription", conf.UplinkSubscriptionName).Info("integration/gcp_pub_sub: check if uplink subscription exists")
	b.uplinkSubscription = b.client.Subscription(conf.UplinkSubscriptionName)
	ok, err := b.uplinkSubscription.Exists(b.ctx)
	if err != nil {
		return nil, errors.Wrap(err, "integration/gcp_pub_sub: subscription exists error")
	}
	if !ok {
		return nil, errors.Errorf("integration/gcp_pub_sub: uplink subscription '%s' does not exist", conf.UplinkSubscriptionName)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			err := b.uplinkSubscription.Receive(b.ctx, b.receiveFunc)
			if err != nil && b.ctx.Err() == nil {
				log.WithError(err).Error("integration/gcp_pub_sub: receive error")
				time.Sleep(time.Second * 2)
				continue
			}

			break
		}
	}()

	return &b, nil
}

// UplinkChan returns the uplink channel.
func (b *Backend) UplinkChan() chan models.Uplink {
	return b.uplinkChan
}

// Close closes the backend.
func (b *Backend) Close() error {
	log.Info("integration/gcp_pub_sub: closing backend")
	b.cancel()
	b.wg.Wait()
	close(b.uplinkChan)
	return b.client.Close()
}

func (b *Backend) receiveFunc(ctx context.Context, msg *pubsub.Message) {
	msg.Ack()

	// ChirpStack sets the event type as attribute, TTN publishes uplinks only.
	typ, ok := msg.Attributes["event"]
	if !ok {
		typ = "up"
	}
	gcpEventCounter(typ).Inc()

	if typ != "up" {
		log.WithField("type", typ).Debug("integration/gcp_pub_sub: ignoring event")
		return
	}

	uplink, t, err := marshaler.UnmarshalUplink(msg.Data)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"data_base64": base64.StdEncoding.EncodeToString(msg.Data),
		}).Error("integration/gcp_pub_sub: unmarshal uplink error")
		return
	}

	log.WithFields(log.Fields{
		"app_id": uplink.AppID,
		"dev_id": uplink.DevID,
		"type":   t,
	}).Info("integration/gcp_pub_sub: uplink event received")

	select {
	case b.uplinkChan <- uplink:
	case <-ctx.Done():
	}
}
