package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sensebox/ttn-osem-integration/internal/backend"
	"github.com/sensebox/ttn-osem-integration/internal/backend/marshaler"
	"github.com/sensebox/ttn-osem-integration/internal/config"
	"github.com/sensebox/ttn-osem-integration/internal/logging"
	"github.com/sensebox/ttn-osem-integration/internal/models"
	"github.com/sensebox/ttn-osem-integration/internal/storage"
)

// Backend implements a MQTT uplink backend.
type Backend struct {
	wg sync.WaitGroup

	conn       paho.Client
	uplinkChan chan models.Uplink

	qos         uint8
	uplinkTopic string
}

// NewBackend creates a new Backend.
func NewBackend(c config.Config) (backend.Uplink, error) {
	conf := c.Integration.Backend.MQTT

	b := Backend{
		uplinkChan:  make(chan models.Uplink),
		qos:         conf.QOS,
		uplinkTopic: conf.UplinkTopic,
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(conf.Server)
	opts.SetUsername(conf.Username)
	opts.SetPassword(conf.Password)
	opts.SetCleanSession(conf.CleanSession)
	opts.SetClientID(conf.ClientID)
	opts.SetOnConnectHandler(b.onConnected)
	opts.SetConnectionLostHandler(b.onConnectionLost)
	if conf.MaxReconnectInterval != 0 {
		opts.SetMaxReconnectInterval(conf.MaxReconnectInterval)
	}

	tlsconfig, err := newTLSConfig(conf.CACert, conf.TLSCert, conf.TLSKey)
	if err != nil {
		return nil, errors.Wrap(err, "integration/mqtt: load tls config error")
	}
	if tlsconfig != nil {
		opts.SetTLSConfig(tlsconfig)
	}

	log.WithField("server", conf.Server).Info("integration/mqtt: connecting to mqtt broker")
	b.conn = paho.NewClient(opts)
	for {
		if token := b.conn.Connect(); token.Wait() && token.Error() != nil {
			log.Errorf("integration/mqtt: connecting to mqtt broker failed, will retry in 2s: %s", token.Error())
			time.Sleep(2 * time.Second)
		} else {
			break
		}
	}

	return &b, nil
}

// Close closes the backend.
func (b *Backend) Close() error {
	log.Info("integration/mqtt: closing backend")

	log.WithField("topic", b.uplinkTopic).Info("integration/mqtt: unsubscribing from uplink topic")
	if token := b.conn.Unsubscribe(b.uplinkTopic); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "integration/mqtt: unsubscribe from %s error", b.uplinkTopic)
	}

	log.Info("integration/mqtt: handling last messages")
	b.wg.Wait()
	close(b.uplinkChan)
	b.conn.Disconnect(250)
	return nil
}

// UplinkChan returns the uplink channel.
func (b *Backend) UplinkChan() chan models.Uplink {
	return b.uplinkChan
}

func (b *Backend) uplinkHandler(c paho.Client, msg paho.Message) {
	b.wg.Add(1)
	defer b.wg.Done()

	ctx, err := logging.NewContext(context.Background())
	if err != nil {
		log.WithError(err).Error("integration/mqtt: new context error")
		return
	}

	uplink, t, err := marshaler.UnmarshalUplink(msg.Payload())
	if err != nil {
		log.WithFields(log.Fields{
			"topic":       msg.Topic(),
			"data_base64": base64.StdEncoding.EncodeToString(msg.Payload()),
			"ctx_id":      ctx.Value(logging.ContextIDKey),
		}).WithError(err).Error("integration/mqtt: unmarshal uplink error")
		return
	}
	mqttUplinkCounter(t.String()).Inc()

	// All instances subscribed to the topic receive the same uplink, the
	// first instance acquiring the lock handles it.
	lockPayload := uplink.PayloadRaw
	if len(lockPayload) == 0 {
		lockPayload = msg.Payload()
	}
	acquired, err := storage.AcquireUplinkLock(ctx, uplink.AppID, uplink.DevID, lockPayload)
	if err != nil {
		log.WithError(err).Error("integration/mqtt: acquire uplink lock error")
		return
	}
	if !acquired {
		return
	}

	log.WithFields(log.Fields{
		"topic":  msg.Topic(),
		"app_id": uplink.AppID,
		"dev_id": uplink.DevID,
		"type":   t,
		"ctx_id": ctx.Value(logging.ContextIDKey),
	}).Info("integration/mqtt: uplink received")

	b.uplinkChan <- uplink
}

func (b *Backend) onConnected(c paho.Client) {
	mqttConnectCounter().Inc()
	log.Info("integration/mqtt: connected to mqtt broker")

	for {
		log.WithFields(log.Fields{
			"topic": b.uplinkTopic,
			"qos":   b.qos,
		}).Info("integration/mqtt: subscribing to uplink topic")
		if token := b.conn.Subscribe(b.uplinkTopic, b.qos, b.uplinkHandler); token.Wait() && token.Error() != nil {
			log.WithFields(log.Fields{
				"topic": b.uplinkTopic,
				"qos":   b.qos,
			}).Errorf("integration/mqtt: subscribe error: %s", token.Error())
			time.Sleep(time.Second)
			continue
		}
		break
	}
}

func (b *Backend) onConnectionLost(c paho.Client, reason error) {
	mqttDisconnectCounter().Inc()
	log.Errorf("integration/mqtt: mqtt connection error: %s", reason)
}

func newTLSConfig(cafile, certFile, certKeyFile string) (*tls.Config, error) {
	if cafile == "" && certFile == "" && certKeyFile == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{}

	if cafile != "" {
		cacert, err := os.ReadFile(cafile)
		if err != nil {
			return nil, errors.Wrap(err, "load ca certificate error")
		}
		certpool := x509.NewCertPool()
		certpool.AppendCertsFromPEM(cacert)

		tlsConfig.RootCAs = certpool
	}

	if certFile != "" && certKeyFile != "" {
		kp, err := tls.LoadX509KeyPair(certFile, certKeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "load tls key-pair error")
		}
		tlsConfig.Certificates = []tls.Certificate{kp}
	}

	return tlsConfig, nil
}
