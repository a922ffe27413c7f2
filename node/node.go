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
	"sync"

	"github.com/bfix-fabric/fabricnode/message"
	"github.com/bfix-fabric/fabricnode/util"

	"github.com/bfix/gospel/logger"
)

// MailboxCapacity bounds every worker mailbox: no unbounded queueing.
const MailboxCapacity = 64

// Node owns the process-wide address table and the transport-type router
// table, and drives cluster-ordered shutdown. It is the runtime root;
// applications never touch it directly, only through a Context.
type Node struct {
	ctx    context.Context
	cancel context.CancelFunc

	reg *registry

	routersMu sync.RWMutex
	routers   map[uint8]*util.Address

	clusterMu sync.Mutex
	clusters  map[string][]*mailbox // cluster name -> member mailboxes, insertion order
	order     []string              // cluster dependency order, leaves-last

	stopOnce sync.Once
}

// New creates a running node. The returned Context is bound to no
// address; use it to start the node's first workers.
func New(parent context.Context) (*Node, *Context) {
	ctx, cancel := context.WithCancel(parent)
	n := &Node{
		ctx:      ctx,
		cancel:   cancel,
		reg:      newRegistry(),
		routers:  make(map[uint8]*util.Address),
		clusters: make(map[string][]*mailbox),
	}
	root := &Context{node: n, goCtx: ctx}
	return n, root
}

// Dispatch implements the core dispatch algorithm: local delivery when
// the next hop is a registered address, otherwise forward to the router
// owning that hop's transport type.
func (n *Node) Dispatch(lm *message.LocalMessage) error {
	next := lm.OnwardRoute().Next()
	if next == nil {
		return ErrNoRoute
	}
	if _, ok := n.reg.lookup(next); ok {
		return n.reg.deliverLocal(next, lm)
	}
	n.routersMu.RLock()
	routerAddr, ok := n.routers[next.Type]
	n.routersMu.RUnlock()
	if !ok {
		return ErrUnknownRoute
	}
	// Forward to the router's main_addr without modifying the route; the
	// router itself decides how to rewrite it.
	return n.reg.deliverLocal(routerAddr, lm)
}

// registerRouter installs a transport-type -> router-address binding. At
// most one binding per type.
func (n *Node) registerRouter(transportType uint8, routerAddr *util.Address) error {
	n.routersMu.Lock()
	defer n.routersMu.Unlock()
	if _, ok := n.routers[transportType]; ok {
		return ErrAlreadyRegistered
	}
	n.routers[transportType] = routerAddr
	return nil
}

func (n *Node) joinCluster(name string, mb *mailbox) {
	n.clusterMu.Lock()
	defer n.clusterMu.Unlock()
	if _, ok := n.clusters[name]; !ok {
		n.order = append(n.order, name)
	}
	mb.cluster = name
	n.clusters[name] = append(n.clusters[name], mb)
}

// Stop initiates node shutdown: clusters are torn down in reverse
// registration order (leaves-last), then any remaining ungrouped
// workers, then the node's own cancellation context.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		n.clusterMu.Lock()
		order := append([]string(nil), n.order...)
		clusters := n.clusters
		n.clusterMu.Unlock()

		for i := len(order) - 1; i >= 0; i-- {
			for _, mb := range clusters[order[i]] {
				n.stopMailbox(mb)
			}
		}
		n.reg.mu.RLock()
		remaining := make(map[*mailbox]bool)
		for _, mb := range n.reg.byID {
			remaining[mb] = true
		}
		n.reg.mu.RUnlock()
		for mb := range remaining {
			if mb.cluster == "" {
				n.stopMailbox(mb)
			}
		}
		n.cancel()
	})
}

func (n *Node) stopMailbox(mb *mailbox) {
	mb.close()
	<-mb.done
	n.reg.unregister(mb)
}

func logf(level int, format string, args ...any) {
	logger.Printf(level, format, args...)
}
