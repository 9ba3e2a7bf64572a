// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"

	"go.wifilogger.dev/wifilogger/pipeline"
)

type Source interface {
	Stats() pipeline.Stats
	SetRouting(enabled bool)
}

// NewRouter returns the status API for source. Requests are logged on logger.
func NewRouter(source Source, logger log.FieldLogger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(accessLog(logger))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) { PingHandler(w, r) })
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) { StatsHandler(w, r, source) })
	r.Put("/route/{state}", func(w http.ResponseWriter, r *http.Request) { RouteHandler(w, r, source) })
	return r
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("pong"))
}

func StatsHandler(w http.ResponseWriter, r *http.Request, source Source) {
	render.JSON(w, r, source.Stats())
}

type errorResponse struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

// RouteHandler switches routing of the standard loggers with PUT /route/on
// or PUT /route/off.
func RouteHandler(w http.ResponseWriter, r *http.Request, source Source) {
	switch state := chi.URLParam(r, "state"); state {
	case "on":
		source.SetRouting(true)
	case "off":
		source.SetRouting(false)
	default:
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, &errorResponse{
			ErrorType:    "Client.InvalidRequest",
			ErrorMessage: "route state must be on or off, got " + state,
		})
		return
	}
	render.JSON(w, r, source.Stats())
}
