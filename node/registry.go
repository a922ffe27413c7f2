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
	"sync"

	"github.com/bfix-fabric/fabricnode/message"
	"github.com/bfix-fabric/fabricnode/util"
)

// mailbox is the runtime record behind one registered address set: either
// a full worker (with its processing goroutine) or a detached receiver.
type mailbox struct {
	addrs   []*util.Address
	primary *util.Address
	ch      chan *Routed
	ac      AccessControl
	cluster string

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{} // closed once the worker goroutine has exited
}

func newMailbox(addrs []*util.Address, capacity int) *mailbox {
	return &mailbox{
		addrs:   addrs,
		primary: addrs[0],
		ch:      make(chan *Routed, capacity),
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (m *mailbox) close() {
	m.closeOnce.Do(func() { close(m.closed) })
}

// deliver enqueues a message, applying access control first. It never
// blocks forever: delivery fails once the mailbox has been closed.
func (m *mailbox) deliver(r *Routed) error {
	if m.ac != nil && !m.ac.IsAuthorized(r) {
		// Trust and access-control rejections are silent to the sender.
		return nil
	}
	select {
	case <-m.closed:
		return ErrStopped
	default:
	}
	select {
	case m.ch <- r:
		return nil
	case <-m.closed:
		return ErrStopped
	}
}

// registry is the node's process-wide address table: the single
// global structure, protected by a read-biased lock since lookups on the
// dispatch hot path vastly outnumber registrations.
type registry struct {
	mu   sync.RWMutex
	byID map[string]*mailbox
}

func newRegistry() *registry {
	return &registry{byID: make(map[string]*mailbox)}
}

func (r *registry) lookup(addr *util.Address) (*mailbox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mb, ok := r.byID[addr.Key()]
	return mb, ok
}

// register installs mb under every given address. Every address in the
// node's table is owned by exactly one worker; if any address is
// already taken, nothing is installed.
func (r *registry) register(addrs []*util.Address, mb *mailbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range addrs {
		if _, ok := r.byID[a.Key()]; ok {
			return ErrAlreadyRegistered
		}
	}
	for _, a := range addrs {
		r.byID[a.Key()] = mb
	}
	return nil
}

// unregister releases every address owned by mb atomically.
func (r *registry) unregister(mb *mailbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range mb.addrs {
		if cur, ok := r.byID[a.Key()]; ok && cur == mb {
			delete(r.byID, a.Key())
		}
	}
}

func (r *registry) lookupByKey(key string) (*mailbox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mb, ok := r.byID[key]
	return mb, ok
}

// deliverLocal looks up addr and enqueues lm, wrapped as Routed, on its
// mailbox. Used both for ordinary local delivery and for handing a
// message to a router's main_addr.
func (r *registry) deliverLocal(addr *util.Address, lm *message.LocalMessage) error {
	mb, ok := r.lookup(addr)
	if !ok {
		return ErrUnknownRoute
	}
	return mb.deliver(&Routed{msg: lm, msgAddr: addr})
}
