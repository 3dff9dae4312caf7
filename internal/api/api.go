// Package api implements the HTTP endpoints for the TTN v2 HTTP integration
// and the TTN v3 webhook integration.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sensebox/ttn-osem-integration/internal/backend/marshaler"
	"github.com/sensebox/ttn-osem-integration/internal/config"
	"github.com/sensebox/ttn-osem-integration/internal/logging"
	"github.com/sensebox/ttn-osem-integration/internal/models"
	"github.com/sensebox/ttn-osem-integration/internal/storage"
	"github.com/sensebox/ttn-osem-integration/internal/uplink"
)

const maxBodySize = 1 << 20

// Response is returned by all endpoints.
type Response struct {
	Code     int      `json:"code"`
	Message  string   `json:"msg"`
	Warnings []string `json:"warnings,omitempty"`
}

// Setup configures and starts the HTTP API server.
func Setup(c config.Config) error {
	if c.Integration.API.Bind == "" {
		log.Info("api: no bind configured, http api is disabled")
		return nil
	}

	log.WithFields(log.Fields{
		"bind": c.Integration.API.Bind,
	}).Info("api: starting http api server")

	server := http.Server{
		Handler:           NewRouter(),
		Addr:              c.Integration.API.Bind,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		log.WithError(err).Error("api: http api server error")
	}()

	return nil
}

// NewRouter returns the handler serving the integration endpoints.
func NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(logging.CtxIDMiddleware)
	r.Use(middleware.Recoverer)

	r.Post("/v1.1", uplinkHandler(marshaler.UnmarshalTTNv2))
	r.Post("/v3", uplinkHandler(marshaler.UnmarshalTTNv3))
	r.Get("/boxes/{boxID}/sensors/{sensorID}/last", lastValueHandler)

	return r
}

func uplinkHandler(unmarshal func([]byte) (models.Uplink, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			writeResponse(w, r, start, Response{
				Code:    http.StatusRequestEntityTooLarge,
				Message: errors.Wrap(err, "read body error").Error(),
			})
			return
		}

		u, err := unmarshal(b)
		if err != nil {
			writeResponse(w, r, start, Response{
				Code:    http.StatusUnprocessableEntity,
				Message: errors.Wrap(err, "malformed request").Error(),
			})
			return
		}

		res, err := uplink.HandleUplink(r.Context(), u)
		if err != nil {
			writeResponse(w, r, start, Response{
				Code:     errToStatusCode(err),
				Message:  err.Error(),
				Warnings: res.Warnings,
			})
			return
		}

		writeResponse(w, r, start, Response{
			Code:     http.StatusCreated,
			Message:  "measurements created",
			Warnings: res.Warnings,
		})
	}
}

func lastValueHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	m, err := storage.GetLastValue(r.Context(), chi.URLParam(r, "boxID"), chi.URLParam(r, "sensorID"))
	if err != nil {
		writeResponse(w, r, start, Response{
			Code:    errToStatusCode(err),
			Message: err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m); err != nil {
		log.WithError(err).Error("api: encode last value error")
	}
}

func writeResponse(w http.ResponseWriter, r *http.Request, start time.Time, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithError(err).Error("api: encode response error")
	}

	l := log.WithFields(log.Fields{
		"method":        r.Method,
		"path":          r.URL.Path,
		"code":          resp.Code,
		"response_time": time.Since(start),
		"ctx_id":        r.Context().Value(logging.ContextIDKey),
	})

	switch {
	case resp.Code >= 500:
		l.Error("api: " + resp.Message)
	case resp.Code >= 400:
		l.Warning("api: " + resp.Message)
	default:
		l.Info("api: " + resp.Message)
	}
}
