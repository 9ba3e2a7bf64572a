// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"go.wifilogger.dev/wifilogger/status"
)

const shutdownTimeout = 2 * time.Second

// startHTTPServer serves the status API on ipport until ctx is done. Access
// logs go to logger.
func startHTTPServer(ctx context.Context, ipport string, source status.Source, logger log.FieldLogger) {
	srv := &http.Server{
		Addr:    ipport,
		Handler: status.NewRouter(source, logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Listening on %s", ipport)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("status server failed")
	}
}
