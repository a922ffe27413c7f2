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

package transport

import (
	"net"
	"strconv"

	"github.com/bfix-fabric/fabricnode/message"
	"github.com/bfix-fabric/fabricnode/node"
	"github.com/bfix-fabric/fabricnode/util"

	"github.com/bfix/gospel/logger"
)

// UDPRouter is a transport router with a single bound socket: one send
// worker and one listen processor serve every peer, the peer's address
// carried alongside each message rather than fixed per-connection.
type UDPRouter struct {
	r        *router
	ctx      *node.Context
	MainAddr *util.Address
	ApiAddr  *util.Address
	conn     *net.UDPConn
	txAddr   *util.Address
	upnpID   string
}

// NewUDPRouter starts a UDP router bound to bind ("0.0.0.0:0" for an
// ephemeral outbound-only port) and registers it with ctx for util.UDP
// addresses. If useUPnP is set, the router asks the local gateway to
// forward the bound port and advertises the external address instead
// of the bind address; a failed mapping falls back to advertising the
// bind address and logs a warning rather than failing the router.
func NewUDPRouter(ctx *node.Context, bind string, allowAutoConnect, useUPnP bool) (*UDPRouter, error) {
	laddr, err := net.ResolveUDPAddr("udp", bind)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	u := &UDPRouter{
		r:        newRouter(util.UDP, allowAutoConnect),
		ctx:      ctx,
		MainAddr: util.RandomLocalAddress(),
		ApiAddr:  util.RandomLocalAddress(),
		conn:     conn,
	}
	u.r.connect = u.connect
	advertised := conn.LocalAddr().String()
	if useUPnP {
		if _, portStr, err := net.SplitHostPort(advertised); err == nil {
			if port, err := strconv.Atoi(portStr); err == nil {
				if id, ext, err := upnpAssign("udp", port); err != nil {
					logger.Printf(logger.WARN, "[transport] udp upnp mapping failed: %s", err)
				} else {
					u.upnpID = id
					advertised = ext
				}
			}
		}
	}
	u.r.advertisedAddr = util.NewAddress(util.UDP, []byte(advertised))
	u.r.mainAddr = u.MainAddr
	u.r.apiAddr = u.ApiAddr

	if _, err := ctx.StartWorker([]*util.Address{u.MainAddr, u.ApiAddr}, &routerWorker{r: u.r}); err != nil {
		return nil, err
	}
	if err := ctx.Register(util.UDP, u.MainAddr); err != nil {
		return nil, err
	}

	u.txAddr = util.RandomLocalAddress()
	sw := &sendWorker{
		addr:         u.txAddr,
		returnPrefix: u.r.advertisedAddr,
		write:        u.write,
		onFail:       func() { u.r.unregister(u.txAddr) },
	}
	wctx, err := ctx.StartWorker([]*util.Address{u.txAddr}, sw)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	go u.listenLoop(wctx)
	return u, nil
}

// Close releases the bound socket and any UPnP mapping.
func (u *UDPRouter) Close() error {
	upnpUnassign(u.upnpID)
	return u.conn.Close()
}

func (u *UDPRouter) write(peer *util.Address, tm *message.TransportMessage) error {
	addr, err := net.ResolveUDPAddr("udp", string(peer.Value))
	if err != nil {
		return err
	}
	body, err := message.Marshal(tm)
	if err != nil {
		return err
	}
	_, err = u.conn.WriteToUDP(body, addr)
	return err
}

// connect has nothing to dial for UDP: it resolves the peer endpoint
// (plus any hostname it names) onto the router's singleton send worker.
func (u *UDPRouter) connect(peer *util.Address) (*util.Address, error) {
	endpoint := string(peer.Value)
	accepts := []*util.Address{peer}
	for _, resolved := range resolveHostname(endpoint) {
		accepts = append(accepts, util.NewAddress(util.UDP, []byte(resolved)))
	}
	if err := u.r.register(accepts, u.txAddr); err != nil {
		return nil, err
	}
	return u.txAddr, nil
}

// listenLoop reads datagrams, registering each new source address as an
// accept on the singleton send worker before forwarding the decoded
// message into the node, matching the spec's server-side UDP behavior:
// there is no per-connection accept, every peer shares one socket.
func (u *UDPRouter) listenLoop(wctx *node.Context) {
	buf := make([]byte, message.MaxFrame)
	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		tm, err := message.Unmarshal(buf[:n])
		if err != nil {
			logger.Printf(logger.WARN, "[transport] udp: malformed datagram from %s: %s", addr, err)
			continue
		}
		peer := util.NewAddress(util.UDP, []byte(addr.String()))
		if err := u.r.register([]*util.Address{peer}, u.txAddr); err != nil {
			logger.Printf(logger.WARN, "[transport] udp: register failed: %s", err)
		}
		if err := wctx.DispatchRaw(message.NewLocalMessage(tm)); err != nil {
			logger.Printf(logger.WARN, "[transport] udp: dispatch failed: %s", err)
		}
	}
}
