// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2019-2022 Bernd Fix  >Y<
//
// gnunet-go is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// gnunet-go is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

package manager

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bfix/gospel/logger"
	"github.com/gorilla/mux"
)

// HTTPStatus is a read-only operator surface over the node manager's
// existing transport bookkeeping: a JSON view, never a dispatch path.
// Grounded on the teacher's service/rpc.go JSON-RPC server, trimmed to a
// single GET route since there is nothing here to mutate through HTTP.
type HTTPStatus struct {
	m   *NodeManager
	srv *http.Server
}

// NewHTTPStatus builds (but does not start) a status server over m,
// listening on addr (e.g. "127.0.0.1:8080") once Start is called.
func NewHTTPStatus(m *NodeManager, addr string) *HTTPStatus {
	router := mux.NewRouter()
	h := &HTTPStatus{m: m}
	router.HandleFunc("/transports", h.serveTransports).Methods(http.MethodGet)
	h.srv = &http.Server{
		Addr:         addr,
		Handler:      router,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	return h
}

func (h *HTTPStatus) serveTransports(w http.ResponseWriter, r *http.Request) {
	resp := h.m.listTransports()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp.Transports); err != nil {
		logger.Printf(logger.WARN, "[manager] http: encode transports: %s", err)
	}
}

// Start runs the status server until ctx is cancelled.
func (h *HTTPStatus) Start(ctx context.Context) {
	go func() {
		if err := h.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf(logger.WARN, "[manager] http: listen failed: %s", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf(logger.WARN, "[manager] http: shutdown failed: %s", err)
		}
	}()
}
