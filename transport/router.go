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

// Package transport implements the node's transport routers: the shared
// dispatch/auto-connect/registration contract of a TransportRouter, with
// TCPRouter and UDPRouter differing only in how their per-peer I/O
// workers open sockets.
package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bfix-fabric/fabricnode/message"
	"github.com/bfix-fabric/fabricnode/node"
	"github.com/bfix-fabric/fabricnode/util"

	"github.com/bfix/gospel/logger"
)

// defaultPeerTTL bounds how long a peer map entry survives without being
// looked up again. Auto-connected peers that go quiet are forgotten rather
// than kept (and reconnected to) forever.
var defaultPeerTTL = util.NewRelativeTime(10 * time.Minute)

var (
	ErrNoEndpoint = errors.New("transport: no endpoint for address")
	ErrIoError    = errors.New("transport: i/o error")
)

// Register is sent to a router's api_addr to install accepts -> self_addr
// bindings in its peer map. It travels only between in-process workers,
// so a plain JSON encoding of the payload is enough.
type Register struct {
	Accepts  []*util.Address `json:"accepts"`
	SelfAddr *util.Address   `json:"self_addr"`
}

func marshalRegister(r *Register) ([]byte, error) { return json.Marshal(r) }

func unmarshalRegister(data []byte) (*Register, error) {
	var r Register
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// router holds the peer map and registration/dispatch algorithm shared by
// every transport-type-specific router. connect is supplied by the
// TCP/UDP constructor and performs the actual socket work.
type router struct {
	mainAddr, apiAddr *util.Address
	transportType     uint8
	allowAutoConnect  bool
	connect           func(onward *util.Address) (*util.Address, error)

	// advertisedAddr, if set, is this router's own externally reachable
	// endpoint. Outbound send workers prepend it to a message's return
	// route so a peer's reply has a hop to route back through.
	advertisedAddr *util.Address

	mu      sync.Mutex
	peers   map[string]*peerEntry      // peer Address.Key() -> tx_addr + expiry
	owned   map[string][]*util.Address // tx_addr.Key() -> accepts it owns
	peerTTL util.RelativeTime
}

// peerEntry is one peer map binding. expires is refreshed on every
// successful lookup, so a peer in active use never ages out; one that
// falls silent for longer than peerTTL does.
type peerEntry struct {
	txAddr  *util.Address
	expires util.AbsoluteTime
}

func newRouter(transportType uint8, allowAutoConnect bool) *router {
	return &router{
		transportType:    transportType,
		allowAutoConnect: allowAutoConnect,
		peers:            make(map[string]*peerEntry),
		owned:            make(map[string][]*util.Address),
		peerTTL:          defaultPeerTTL,
	}
}

func (r *router) lookup(addr *util.Address) (*util.Address, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[addr.Key()]
	if !ok {
		return nil, false
	}
	if e.expires.Expired() {
		delete(r.peers, addr.Key())
		return nil, false
	}
	e.expires = util.AbsoluteTimeNow().Add(time.Duration(r.peerTTL.Val) * time.Millisecond)
	return e.txAddr, true
}

// register installs accepts -> selfAddr. Idempotent: if every accept
// already maps to selfAddr, this is a no-op success. An accept already
// bound to a different self_addr keeps its first binding; the conflict is
// only logged, per the "first wins" resolution of the registration
// conflict (see DESIGN.md).
func (r *router) register(accepts []*util.Address, selfAddr *util.Address) error {
	if len(accepts) == 0 {
		return node.ErrInvalidAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	expires := util.AbsoluteTimeNow().Add(time.Duration(r.peerTTL.Val) * time.Millisecond)
	for _, a := range accepts {
		if existing, ok := r.peers[a.Key()]; ok {
			if !existing.txAddr.Equals(selfAddr) {
				logger.Printf(logger.WARN, "[transport] register: %s already bound to %s, ignoring conflicting self_addr %s", a, existing.txAddr, selfAddr)
			}
			continue
		}
		r.peers[a.Key()] = &peerEntry{txAddr: selfAddr, expires: expires}
	}
	r.owned[selfAddr.Key()] = append(r.owned[selfAddr.Key()], accepts...)
	return nil
}

// unregister drops every accept entry still owned by selfAddr, used once
// its send worker has failed or been stopped.
func (r *router) unregister(selfAddr *util.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.owned[selfAddr.Key()] {
		if cur, ok := r.peers[a.Key()]; ok && cur.txAddr.Equals(selfAddr) {
			delete(r.peers, a.Key())
		}
	}
	delete(r.owned, selfAddr.Key())
}

// routerWorker is the router's single mailbox, owning both main_addr
// (dispatch target: lookup, auto-connect, double-prepend route rewrite)
// and api_addr (Register messages), the same way identity.Channel owns
// both its network and application addresses from one worker.
type routerWorker struct {
	r *router
}

func (h *routerWorker) Initialize(ctx *node.Context) error {
	ctx.SetCluster("transport")
	return nil
}

func (h *routerWorker) Shutdown(ctx *node.Context) {}

func (h *routerWorker) HandleMessage(ctx *node.Context, routed *node.Routed) {
	switch {
	case routed.MsgAddr().Equals(h.r.mainAddr):
		h.handleMain(ctx, routed)
	case routed.MsgAddr().Equals(h.r.apiAddr):
		h.handleApi(routed)
	default:
		logger.Printf(logger.WARN, "[transport] router: message for unknown address %s", routed.MsgAddr())
	}
}

func (h *routerWorker) handleMain(ctx *node.Context, routed *node.Routed) {
	lm := routed.LocalMessage()
	onward := lm.OnwardRoute().Clone()
	peer := onward.Next()
	if peer == nil {
		logger.Printf(logger.WARN, "[transport] main: empty onward route")
		return
	}
	txAddr, ok := h.r.lookup(peer)
	if !ok {
		if !h.r.allowAutoConnect {
			logger.Printf(logger.WARN, "[transport] main: no route to %s and auto-connect disabled", peer)
			return
		}
		var err error
		txAddr, err = h.r.connect(peer)
		if err != nil {
			logger.Printf(logger.WARN, "[transport] main: connect to %s failed: %s", peer, err)
			return
		}
	}
	if _, err := onward.Step(); err != nil {
		logger.Printf(logger.WARN, "[transport] main: %s", err)
		return
	}
	onward.Prepend(peer)
	onward.Prepend(txAddr)
	out := message.NewLocalMessage(message.NewTransportMessage(onward, lm.ReturnRoute().Clone(), lm.Payload()))
	if err := ctx.DispatchRaw(out); err != nil {
		logger.Printf(logger.WARN, "[transport] main: forward to %s failed: %s", txAddr, err)
	}
}

func (h *routerWorker) handleApi(routed *node.Routed) {
	reg, err := unmarshalRegister(routed.Body())
	if err != nil {
		logger.Printf(logger.WARN, "[transport] api: malformed register: %s", err)
		return
	}
	if err := h.r.register(reg.Accepts, reg.SelfAddr); err != nil {
		logger.Printf(logger.WARN, "[transport] api: register failed: %s", err)
	}
}

// sendWorker owns one fresh local address and turns every LocalMessage
// dispatched to it into a framed TransportMessage written to the wire.
// Dispatch delivers the message with the worker's own address still at
// the head of the onward route (Dispatch only peeks, never steps), so
// HandleMessage strips that hop itself, then strips the peer-address hop
// the router's double-prepend left visible underneath it — the UDP
// singleton send worker needs that peer address to pick a destination;
// TCP's per-connection worker ignores it, since its one connection has
// only one possible destination.
type sendWorker struct {
	addr   *util.Address
	write  func(peer *util.Address, tm *message.TransportMessage) error
	onFail func()

	// returnPrefix, if set, is this router's advertised endpoint,
	// prepended to every outbound message's return route so the peer's
	// reply has a hop to route back through.
	returnPrefix *util.Address
}

func (w *sendWorker) Initialize(ctx *node.Context) error { return nil }
func (w *sendWorker) Shutdown(ctx *node.Context)         {}

func (w *sendWorker) HandleMessage(ctx *node.Context, routed *node.Routed) {
	lm := routed.LocalMessage()
	onward := lm.OnwardRoute().Clone()
	if _, err := onward.Step(); err != nil {
		logger.Printf(logger.WARN, "[transport] send worker: %s", err)
		return
	}
	peer, err := onward.Step()
	if err != nil {
		logger.Printf(logger.WARN, "[transport] send worker: missing peer hop: %s", err)
		return
	}
	ret := lm.ReturnRoute().Clone()
	if w.returnPrefix != nil {
		ret.Prepend(w.returnPrefix)
	}
	tm := message.NewTransportMessage(onward, ret, lm.Payload())
	if err := w.write(peer, tm); err != nil {
		logger.Printf(logger.WARN, "[transport] send worker: write to %s failed: %s", peer, err)
		if w.onFail != nil {
			w.onFail()
		}
		go func() { _ = ctx.StopWorker(w.addr) }()
	}
}
