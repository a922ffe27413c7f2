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

// Package message defines the envelope types that cross worker and node
// boundaries and their wire codec.
package message

import (
	"errors"

	"github.com/bfix-fabric/fabricnode/util"
)

// ErrEmptyOnwardRoute is returned when a hop is required but the onward
// route has already been fully consumed.
var ErrEmptyOnwardRoute = errors.New("onward route is empty")

// WireVersion is the only TransportMessage version this node speaks.
const WireVersion uint8 = 1

// TransportMessage is the unit that crosses a wire: a routed payload with
// the routing state needed to deliver it and to route a reply back.
type TransportMessage struct {
	Version      uint8
	OnwardRoute  *util.Route
	ReturnRoute  *util.Route
	Payload      []byte
}

// NewTransportMessage builds a TransportMessage at the current wire version.
func NewTransportMessage(onward, ret *util.Route, payload []byte) *TransportMessage {
	if onward == nil {
		onward = util.NewRoute()
	}
	if ret == nil {
		ret = util.NewRoute()
	}
	return &TransportMessage{
		Version:     WireVersion,
		OnwardRoute: onward,
		ReturnRoute: ret,
		Payload:     payload,
	}
}

// LocalMessage wraps a TransportMessage with trusted, in-node-only
// metadata. LocalInfo entries never cross the wire.
type LocalMessage struct {
	Transport *TransportMessage
	LocalInfo []any
}

// NewLocalMessage wraps a transport message with no local info attached.
func NewLocalMessage(tm *TransportMessage) *LocalMessage {
	return &LocalMessage{Transport: tm}
}

// WithLocalInfo returns a copy of the message with info appended. The
// original message's LocalInfo slice is left untouched so a worker that
// forwards the same message to several local hops never aliases another
// hop's view of it.
func (m *LocalMessage) WithLocalInfo(info any) *LocalMessage {
	out := &LocalMessage{
		Transport: m.Transport,
		LocalInfo: make([]any, len(m.LocalInfo), len(m.LocalInfo)+1),
	}
	copy(out.LocalInfo, m.LocalInfo)
	out.LocalInfo = append(out.LocalInfo, info)
	return out
}

// LocalInfoOf returns the first attached local-info value assignable to T.
func LocalInfoOf[T any](m *LocalMessage) (T, bool) {
	var zero T
	for _, li := range m.LocalInfo {
		if v, ok := li.(T); ok {
			return v, true
		}
	}
	return zero, false
}

// OnwardRoute returns the message's onward route, never nil.
func (m *LocalMessage) OnwardRoute() *util.Route {
	if m.Transport.OnwardRoute == nil {
		return util.NewRoute()
	}
	return m.Transport.OnwardRoute
}

// ReturnRoute returns the message's return route, never nil.
func (m *LocalMessage) ReturnRoute() *util.Route {
	if m.Transport.ReturnRoute == nil {
		return util.NewRoute()
	}
	return m.Transport.ReturnRoute
}

// Payload returns the message body.
func (m *LocalMessage) Payload() []byte {
	return m.Transport.Payload
}
