package uplink

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sensebox/ttn-osem-integration/internal/backend"
	"github.com/sensebox/ttn-osem-integration/internal/decoding"
	"github.com/sensebox/ttn-osem-integration/internal/logging"
	"github.com/sensebox/ttn-osem-integration/internal/models"
	"github.com/sensebox/ttn-osem-integration/internal/storage"
)

type uplinkContext struct {
	ctx context.Context

	Uplink models.Uplink
	Box    storage.Box
	Device decoding.Device
	Result decoding.Result
}

var tasks = []struct {
	name string
	f    func(*uplinkContext) error
}{
	{"validate", validateUplink},
	{"get_box", getBox},
	{"decode", decodePayload},
	{"save", saveMeasurements},
	{"last_values", setLastValues},
	{"log", logUplink},
}

// HandleUplink decodes the payload of the given uplink and stores the
// resulting measurements for the box configured for the uplink device.
func HandleUplink(ctx context.Context, u models.Uplink) (decoding.Result, error) {
	uctx := uplinkContext{
		ctx:    ctx,
		Uplink: u,
	}

	uplinkCounter(string(u.Source)).Inc()

	for _, t := range tasks {
		if err := t.f(&uctx); err != nil {
			uplinkErrorCounter(t.name).Inc()
			return uctx.Result, err
		}
	}

	return uctx.Result, nil
}

func validateUplink(ctx *uplinkContext) error {
	return ctx.Uplink.Validate()
}

func getBox(ctx *uplinkContext) error {
	b, err := storage.GetAndCacheBoxForTTNDevice(ctx.ctx, storage.DB(), ctx.Uplink.AppID, ctx.Uplink.DevID, ctx.Uplink.FPort)
	if err != nil {
		return err
	}
	ctx.Box = b
	return nil
}

func decodePayload(ctx *uplinkContext) error {
	dev, err := ctx.Box.Device()
	if err != nil {
		return err
	}
	ctx.Device = dev

	res, err := decoding.DecodeRequest(ctx.Uplink.DecodingRequest(), dev)
	ctx.Result = res
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		log.WithFields(log.Fields{
			"box_id":  ctx.Box.ID,
			"warning": w,
			"ctx_id":  ctx.ctx.Value(logging.ContextIDKey),
		}).Warning("uplink: decoding warning")
	}

	return nil
}

func saveMeasurements(ctx *uplinkContext) error {
	return storage.Transaction(ctx.ctx, func(tx *sqlx.Tx) error {
		return storage.SaveMeasurements(ctx.ctx, tx, ctx.Box, ctx.Result.Measurements)
	})
}

func setLastValues(ctx *uplinkContext) error {
	if err := storage.SetLastValues(ctx.ctx, ctx.Box.ID, ctx.Result.Measurements); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"box_id": ctx.Box.ID,
			"ctx_id": ctx.ctx.Value(logging.ContextIDKey),
		}).Error("uplink: set last values error")
	}
	return nil
}

func logUplink(ctx *uplinkContext) error {
	profile := ctx.Box.TTNProfile
	measurementCounter(profile).Add(float64(len(ctx.Result.Measurements)))

	log.WithFields(log.Fields{
		"app_id":       ctx.Uplink.AppID,
		"dev_id":       ctx.Uplink.DevID,
		"box_id":       ctx.Box.ID,
		"profile":      profile,
		"measurements": len(ctx.Result.Measurements),
		"ctx_id":       ctx.ctx.Value(logging.ContextIDKey),
	}).Info("uplink: measurements saved")
	return nil
}

// Server represents a server handling the uplinks of an uplink backend.
type Server struct {
	wg      sync.WaitGroup
	backend backend.Uplink
}

// NewServer creates a new server.
func NewServer(b backend.Uplink) *Server {
	return &Server{
		backend: b,
	}
}

// Start starts the server.
func (s *Server) Start() error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		HandleUplinks(&s.wg, s.backend)
	}()
	return nil
}

// Stop closes the uplink backend and waits for the server to complete the
// pending uplinks.
func (s *Server) Stop() error {
	if err := s.backend.Close(); err != nil {
		return errors.Wrap(err, "close uplink backend error")
	}
	log.Info("uplink: waiting for pending actions to complete")
	s.wg.Wait()
	return nil
}

// HandleUplinks consumes the uplinks received by the backend and handles
// each uplink in a separate go-routine. Errors are logged.
func HandleUplinks(wg *sync.WaitGroup, b backend.Uplink) {
	for u := range b.UplinkChan() {
		wg.Add(1)
		go func(u models.Uplink) {
			defer wg.Done()

			ctx, err := logging.NewContext(context.Background())
			if err != nil {
				log.WithError(err).Error("uplink: new context error")
				return
			}

			if _, err := HandleUplink(ctx, u); err != nil {
				log.WithError(err).WithFields(log.Fields{
					"app_id":      u.AppID,
					"dev_id":      u.DevID,
					"payload_hex": hex.EncodeToString(u.PayloadRaw),
					"ctx_id":      ctx.Value(logging.ContextIDKey),
				}).Error("uplink: processing uplink error")
			}
		}(u)
	}
}
