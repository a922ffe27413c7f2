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
	"context"
	"time"

	"github.com/bfix-fabric/fabricnode/message"
	"github.com/bfix-fabric/fabricnode/util"

	"github.com/bfix/gospel/logger"
)

// Context is the per-worker handle into the node runtime. It
// exposes a capability set, not a class to subclass: send, receive,
// worker lifecycle, router registration, and cluster membership.
type Context struct {
	node  *Node
	goCtx context.Context
	mb    *mailbox // nil for the root context
}

// WorkerOption configures a worker at start_worker time.
type WorkerOption func(*mailbox)

// WithAccessControl installs an AccessControl predicate evaluated before
// every inbound dispatch to this worker.
func WithAccessControl(ac AccessControl) WorkerOption {
	return func(mb *mailbox) { mb.ac = ac }
}

// PrimaryAddress returns the first address this context's worker (or
// detached receiver) owns. The root context has no primary address.
func (c *Context) PrimaryAddress() *util.Address {
	if c.mb == nil {
		return nil
	}
	return c.mb.primary
}

// StartWorker registers every address in addrs to a new mailbox and spawns
// the worker's processing goroutine. Fails with ErrAlreadyRegistered if
// any address is already taken.
func (c *Context) StartWorker(addrs []*util.Address, w Worker, opts ...WorkerOption) (*Context, error) {
	if len(addrs) == 0 {
		return nil, ErrInvalidAddress
	}
	mb := newMailbox(addrs, MailboxCapacity)
	for _, opt := range opts {
		opt(mb)
	}
	if err := c.node.reg.register(addrs, mb); err != nil {
		return nil, err
	}
	wctx := &Context{node: c.node, goCtx: c.node.ctx, mb: mb}
	if err := w.Initialize(wctx); err != nil {
		c.node.reg.unregister(mb)
		close(mb.done)
		return nil, err
	}
	go c.runWorker(wctx, mb, w)
	return wctx, nil
}

func (c *Context) runWorker(wctx *Context, mb *mailbox, w Worker) {
	defer close(mb.done)
	defer w.Shutdown(wctx)
	for {
		select {
		case <-mb.closed:
			return
		case <-wctx.goCtx.Done():
			return
		case routed := <-mb.ch:
			// Intra-worker ordering: handle strictly one at a time.
			w.HandleMessage(wctx, routed)
		}
	}
}

// StopWorker stops the worker owning addr: signals shutdown, waits for its
// goroutine to finish, then releases all of its addresses.
func (c *Context) StopWorker(addr *util.Address) error {
	mb, ok := c.node.reg.lookup(addr)
	if !ok {
		return ErrNotAWorker
	}
	c.node.stopMailbox(mb)
	return nil
}

// Send wraps payload as a LocalMessage with this context's primary address
// prepended to the return route, then dispatches it.
func (c *Context) Send(route *util.Route, payload []byte) error {
	onward := route.Clone()
	ret := util.NewRoute()
	if primary := c.PrimaryAddress(); primary != nil {
		ret.Prepend(primary)
	}
	lm := message.NewLocalMessage(message.NewTransportMessage(onward, ret, payload))
	return c.node.Dispatch(lm)
}

// SendAndReceive creates a one-shot detached mailbox, sends req along
// route, and awaits a typed reply on that mailbox. The detached address is
// dropped on return or on ctx cancellation, silently discarding any later
// reply.
func (c *Context) SendAndReceive(ctx context.Context, route *util.Route, req []byte, timeout time.Duration) ([]byte, error) {
	detached := c.NewDetached(util.RandomLocalAddress())
	defer c.node.reg.unregister(detached.mb)
	defer detached.mb.close()

	onward := route.Clone()
	ret := util.NewRoute(detached.PrimaryAddress())
	lm := message.NewLocalMessage(message.NewTransportMessage(onward, ret, req))
	if err := c.node.Dispatch(lm); err != nil {
		return nil, err
	}
	routed, err := detached.Receive(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return routed.Body(), nil
}

// Receive dequeues the next message from this context's mailbox. A
// positive timeout bounds the wait; zero means wait indefinitely until ctx
// is cancelled.
func (c *Context) Receive(ctx context.Context, timeout time.Duration) (*Routed, error) {
	if c.mb == nil {
		return nil, ErrNotAWorker
	}
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	select {
	case routed := <-c.mb.ch:
		return routed, nil
	case <-c.mb.closed:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ErrCancelled
	case <-timeoutCh:
		return nil, ErrTimeout
	}
}

// Deliver enqueues routed directly onto this context's own mailbox, as if
// it had arrived through ordinary dispatch. Used by workers that bootstrap
// a fresh sibling context and hand off the message that triggered its
// creation (e.g. a secure-channel listener handing the first handshake
// message to a freshly started decryptor) instead of round-tripping it
// through the node's address table.
func (c *Context) Deliver(routed *Routed) error {
	if c.mb == nil {
		return ErrNotAWorker
	}
	return c.mb.deliver(routed)
}

// DispatchRaw re-enters the node's dispatch algorithm with an already
// fully-formed LocalMessage, without the address-prepending Send performs.
// Used by workers that rewrite a message's routes themselves before
// forwarding it onward (e.g. a secure-channel decryptor prepending its own
// address to the inbound return route before forwarding to the next local
// hop).
func (c *Context) DispatchRaw(lm *message.LocalMessage) error {
	return c.node.Dispatch(lm)
}

// Register installs a transport-type -> router-address binding in the
// node's dispatch table. At most one binding per type.
func (c *Context) Register(transportType uint8, routerAddr *util.Address) error {
	return c.node.registerRouter(transportType, routerAddr)
}

// NewDetached returns a lightweight context bound to addr whose only
// purpose is to receive; it is not a worker and runs no goroutine.
func (c *Context) NewDetached(addr *util.Address, opts ...WorkerOption) *Context {
	addrs := []*util.Address{addr}
	mb := newMailbox(addrs, MailboxCapacity)
	for _, opt := range opts {
		opt(mb)
	}
	if err := c.node.reg.register(addrs, mb); err != nil {
		// RandomLocalAddress collisions are astronomically unlikely; a
		// caller supplying a fixed address that collides gets a mailbox
		// that will never receive anything instead of a panic.
		logf(logger.WARN, "[node] detached context %s: %s", addr, err)
	} else {
		close(mb.done)
	}
	return &Context{node: c.node, goCtx: c.node.ctx, mb: mb}
}

// SetCluster marks the caller's worker as a member of the named shutdown
// cluster. All workers in a cluster shut down before workers outside it.
func (c *Context) SetCluster(name string) {
	if c.mb == nil {
		return
	}
	c.node.joinCluster(name, c.mb)
}

// Stop initiates node-wide shutdown.
func (c *Context) Stop() {
	c.node.Stop()
}
