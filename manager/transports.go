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
	"strconv"
	"strings"

	"github.com/bfix-fabric/fabricnode/transport"
)

func (m *NodeManager) createTransport(req *CreateTransportRequest) *Response {
	if req == nil {
		return errorResponse("create_transport: missing request body")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tm := "connect"
	if req.Bind != "" {
		tm = "listen"
	}
	entry := &transportEntry{
		tid: strconv.Itoa(m.nextTID),
		tt:  strings.ToLower(req.Type),
		tm:  tm,
	}

	switch entry.tt {
	case "tcp":
		t, err := transport.NewTCPRouter(m.ctx, req.Bind, req.AllowAutoConnect, req.UPnP)
		if err != nil {
			return errorResponse("create_transport: %s", err)
		}
		entry.tcp = t
		entry.main = t.MainAddr
	case "udp":
		u, err := transport.NewUDPRouter(m.ctx, req.Bind, req.AllowAutoConnect, req.UPnP)
		if err != nil {
			return errorResponse("create_transport: %s", err)
		}
		entry.udp = u
		entry.main = u.MainAddr
	default:
		return errorResponse("create_transport: unknown type %q", req.Type)
	}

	m.nextTID++
	m.transports = append(m.transports, entry)
	return &Response{OK: true, Address: entry.main}
}

func (m *NodeManager) listTransports() *Response {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]TransportStatus, 0, len(m.transports))
	for _, e := range m.transports {
		list = append(list, TransportStatus{
			TID:     e.tid,
			TT:      e.tt,
			TM:      e.tm,
			Payload: e.main.String(),
		})
	}
	return &Response{OK: true, Transports: &TransportList{List: list}}
}

// closeTransports calls Close on every transport this manager created,
// releasing their listening sockets and UPnP mappings. It stops no
// workers. No code in this module calls it.
func (m *NodeManager) closeTransports() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.transports {
		if e.tcp != nil {
			_ = e.tcp.Close()
		}
		if e.udp != nil {
			_ = e.udp.Close()
		}
	}
}
