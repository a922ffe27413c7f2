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

// TCPRouter is a transport router whose per-peer send/listen workers
// speak length-framed TransportMessages over net.Conn.
type TCPRouter struct {
	r        *router
	ctx      *node.Context
	MainAddr *util.Address
	ApiAddr  *util.Address
	listener net.Listener
	upnpID   string
}

// NewTCPRouter starts a TCP router and registers it with ctx for every
// util.TCP address. bind is a "host:port" listen spec; pass "" for an
// outbound-only router that never accepts connections. If useUPnP is
// set and bind opens a listener, the router asks the local gateway to
// forward the bound port and advertises the external address instead
// of the bind address; a failed mapping falls back to advertising the
// bind address and logs a warning rather than failing the router.
func NewTCPRouter(ctx *node.Context, bind string, allowAutoConnect, useUPnP bool) (*TCPRouter, error) {
	t := &TCPRouter{
		r:        newRouter(util.TCP, allowAutoConnect),
		ctx:      ctx,
		MainAddr: util.RandomLocalAddress(),
		ApiAddr:  util.RandomLocalAddress(),
	}
	t.r.connect = t.connect
	t.r.mainAddr = t.MainAddr
	t.r.apiAddr = t.ApiAddr

	if _, err := ctx.StartWorker([]*util.Address{t.MainAddr, t.ApiAddr}, &routerWorker{r: t.r}); err != nil {
		return nil, err
	}
	if err := ctx.Register(util.TCP, t.MainAddr); err != nil {
		return nil, err
	}

	if bind != "" {
		ln, err := net.Listen("tcp", bind)
		if err != nil {
			return nil, err
		}
		t.listener = ln
		advertised := ln.Addr().String()
		if useUPnP {
			if _, portStr, err := net.SplitHostPort(advertised); err == nil {
				if port, err := strconv.Atoi(portStr); err == nil {
					if id, ext, err := upnpAssign("tcp", port); err != nil {
						logger.Printf(logger.WARN, "[transport] tcp upnp mapping failed: %s", err)
					} else {
						t.upnpID = id
						advertised = ext
					}
				}
			}
		}
		t.r.advertisedAddr = util.NewAddress(util.TCP, []byte(advertised))
		go t.acceptLoop()
	}
	return t, nil
}

// Close stops accepting new connections and releases any UPnP mapping.
// Already-open connections and their send workers are unaffected; a send
// worker stops on an I/O error on its connection or when the node stops.
func (t *TCPRouter) Close() error {
	upnpUnassign(t.upnpID)
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

func (t *TCPRouter) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}
		peer := util.NewAddress(util.TCP, []byte(conn.RemoteAddr().String()))
		txAddr := t.serve(conn, peer.String())
		if txAddr == nil {
			continue
		}
		if err := t.r.register([]*util.Address{peer}, txAddr); err != nil {
			logger.Printf(logger.WARN, "[transport] tcp accept: register failed: %s", err)
		}
	}
}

// connect dials peer's "host:port" endpoint, resolves any hostname to its
// own addresses, spins up the send worker and listen processor, and
// registers the dialed endpoint and every resolved address to the fresh
// tx_addr.
func (t *TCPRouter) connect(peer *util.Address) (*util.Address, error) {
	endpoint := string(peer.Value)
	conn, err := net.Dial("tcp", endpoint)
	if err != nil {
		return nil, err
	}
	accepts := []*util.Address{peer}
	for _, resolved := range resolveHostname(endpoint) {
		accepts = append(accepts, util.NewAddress(util.TCP, []byte(resolved)))
	}
	txAddr := t.serve(conn, endpoint)
	if txAddr == nil {
		return nil, ErrIoError
	}
	if err := t.r.register(accepts, txAddr); err != nil {
		return nil, err
	}
	return txAddr, nil
}

// serve starts the send worker and listen processor for one connection
// and returns the send worker's fresh address.
func (t *TCPRouter) serve(conn net.Conn, label string) *util.Address {
	txAddr := util.RandomLocalAddress()
	sw := &sendWorker{
		addr:         txAddr,
		returnPrefix: t.r.advertisedAddr,
		write: func(_ *util.Address, tm *message.TransportMessage) error {
			return message.WriteFrame(conn, tm)
		},
		onFail: func() {
			t.r.unregister(txAddr)
			_ = conn.Close()
		},
	}
	wctx, err := t.ctx.StartWorker([]*util.Address{txAddr}, sw)
	if err != nil {
		_ = conn.Close()
		return nil
	}
	go t.listenLoop(wctx, conn, txAddr, label)
	return txAddr
}

func (t *TCPRouter) listenLoop(wctx *node.Context, conn net.Conn, txAddr *util.Address, label string) {
	for {
		tm, err := message.ReadFrame(conn)
		if err != nil {
			logger.Printf(logger.DBG, "[transport] tcp %s: read ended: %s", label, err)
			break
		}
		if err := wctx.DispatchRaw(message.NewLocalMessage(tm)); err != nil {
			logger.Printf(logger.WARN, "[transport] tcp %s: dispatch failed: %s", label, err)
		}
	}
	t.r.unregister(txAddr)
	_ = conn.Close()
	_ = wctx.StopWorker(txAddr)
}
