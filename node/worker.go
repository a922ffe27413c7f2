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

package node

import (
	"github.com/bfix-fabric/fabricnode/message"
	"github.com/bfix-fabric/fabricnode/util"
)

// Worker is the capability set every fabric actor implements: a worker is
// polymorphic by what it does, not by a class hierarchy. Dispatch
// tables key on address, never on worker type.
type Worker interface {
	// Initialize runs exactly once, before the worker's first message.
	Initialize(ctx *Context) error
	// HandleMessage processes one inbound message. Workers handle their
	// mailbox strictly one message at a time.
	HandleMessage(ctx *Context, routed *Routed)
	// Shutdown runs once, when the worker is stopped.
	Shutdown(ctx *Context)
}

// Routed wraps an inbound LocalMessage with the address of this worker
// that received it. A handler decodes the raw payload itself; access
// control and routing only ever need the envelope.
type Routed struct {
	msg     *message.LocalMessage
	msgAddr *util.Address
}

// LocalMessage returns the full envelope, local info included.
func (r *Routed) LocalMessage() *message.LocalMessage {
	return r.msg
}

// MsgAddr returns which of the receiving worker's addresses took delivery.
func (r *Routed) MsgAddr() *util.Address {
	return r.msgAddr
}

// ReturnRoute returns the route a reply should be sent along.
func (r *Routed) ReturnRoute() *util.Route {
	return r.msg.ReturnRoute()
}

// Body returns the message payload.
func (r *Routed) Body() []byte {
	return r.msg.Payload()
}

// AccessControl gates inbound delivery to a worker's mailbox. It is
// evaluated before every dispatch, including replies; there is no bypass.
type AccessControl interface {
	IsAuthorized(routed *Routed) bool
}
