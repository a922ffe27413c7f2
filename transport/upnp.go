// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2022 Bernd Fix  >Y<
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

package transport

import (
	"sync"

	"github.com/bfix/gospel/network"
)

// upnpMapper is shared across routers in the process: WAN gateway
// discovery is slow and only needs doing once. Unlike the teacher's
// package-level instance, it is built lazily on first use instead of in
// an init(), so a router that never asks for UPnP never pays the WAN
// probe and a node without a reachable gateway doesn't fail to start.
var (
	upnpMapper   *network.PortMapper
	upnpMapperMu sync.Mutex
)

func ensureUPnP() (*network.PortMapper, error) {
	upnpMapperMu.Lock()
	defer upnpMapperMu.Unlock()
	if upnpMapper == nil {
		pm, err := network.NewPortMapper("fabricnode")
		if err != nil {
			return nil, err
		}
		upnpMapper = pm
	}
	return upnpMapper, nil
}

// upnpAssign requests a port forward for port on protocol ("tcp" or
// "udp") and returns the mapping id (for upnpUnassign) and the
// externally reachable "ip:port" a peer should dial instead of the
// router's bind address.
func upnpAssign(protocol string, port int) (id, external string, err error) {
	pm, err := ensureUPnP()
	if err != nil {
		return "", "", err
	}
	id, external, _, err = pm.Assign(protocol, port)
	return id, external, err
}

// upnpUnassign releases a mapping obtained from upnpAssign. A no-op for
// a router that never mapped a port.
func upnpUnassign(id string) {
	if id == "" || upnpMapper == nil {
		return
	}
	_ = upnpMapper.Unassign(id)
}
