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

// Package manager implements the node manager: a well-known worker that
// lets an operator or a launcher create transports, start the identity
// services, and open secure channels without reaching into the node's
// internals directly, generalized from the teacher's per-service
// registration surface to a single in-fabric request/response worker.
package manager

import (
	"fmt"
	"sync"

	"github.com/bfix-fabric/fabricnode/identity"
	"github.com/bfix-fabric/fabricnode/node"
	"github.com/bfix-fabric/fabricnode/store"
	"github.com/bfix-fabric/fabricnode/transport"
	"github.com/bfix-fabric/fabricnode/util"

	"github.com/bfix/gospel/logger"
)

// Address is the node manager's well-known local address.
var Address = util.NewLocalAddress([]byte("_internal.nodemanager"))

// transportEntry tracks one created transport router for list_transports.
type transportEntry struct {
	tid  string
	tt   string // "tcp" or "udp"
	tm   string // "listen" or "connect"
	main *util.Address
	tcp  *transport.TCPRouter
	udp  *transport.UDPRouter
}

// NodeManager is the worker behind the well-known node-manager address.
// It owns no transport or identity state of its own beyond what a caller
// explicitly asks it to create, mirroring the teacher's core.Core holding
// a registry of services rather than implementing them.
type NodeManager struct {
	mu         sync.Mutex
	ctx        *node.Context
	transports []*transportEntry
	nextTID    int

	vault   identity.Vault
	id      *identity.Identity
	storage store.AuthenticatedStorage
}

// New returns an unstarted node manager. storage may be nil; it is only
// needed if a secure-channel listener should persist session state.
func New(storage store.AuthenticatedStorage) *NodeManager {
	return &NodeManager{storage: storage}
}

func (m *NodeManager) Initialize(ctx *node.Context) error {
	m.ctx = ctx
	ctx.SetCluster("manager")
	return nil
}

func (m *NodeManager) Shutdown(ctx *node.Context) {}

func (m *NodeManager) HandleMessage(ctx *node.Context, routed *node.Routed) {
	req, err := unmarshalRequest(routed.Body())
	if err != nil {
		logger.Printf(logger.WARN, "[manager] malformed request: %s", err)
		return
	}
	resp := m.dispatch(req)
	data, err := marshalResponse(resp)
	if err != nil {
		logger.Printf(logger.ERROR, "[manager] marshal response: %s", err)
		return
	}
	if err := ctx.Send(routed.ReturnRoute(), data); err != nil {
		logger.Printf(logger.WARN, "[manager] reply failed: %s", err)
	}
}

func (m *NodeManager) dispatch(req *Request) *Response {
	switch req.Kind {
	case KindCreateTransport:
		return m.createTransport(req.CreateTransport)
	case KindListTransports:
		return m.listTransports()
	case KindStartService:
		return m.startService(req.StartService)
	case KindCreateSecureChannel:
		return m.createSecureChannel(req.CreateSecureChannel)
	default:
		return errorResponse("unknown request kind %q", req.Kind)
	}
}

func errorResponse(format string, args ...any) *Response {
	return &Response{OK: false, Error: fmt.Sprintf(format, args...)}
}
