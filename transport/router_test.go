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
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bfix-fabric/fabricnode/message"
	"github.com/bfix-fabric/fabricnode/node"
	"github.com/bfix-fabric/fabricnode/util"
)

func TestRegisterIdempotent(t *testing.T) {
	r := newRouter(util.TCP, false)
	peer := util.NewAddress(util.TCP, []byte("10.0.0.1:9000"))
	tx := util.RandomLocalAddress()

	if err := r.register([]*util.Address{peer}, tx); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.register([]*util.Address{peer}, tx); err != nil {
		t.Fatalf("re-register with same self_addr: %v", err)
	}
	got, ok := r.lookup(peer)
	if !ok || !got.Equals(tx) {
		t.Fatalf("lookup after idempotent re-register: got %v, ok %v", got, ok)
	}
}

func TestRegisterConflictKeepsFirstBinding(t *testing.T) {
	r := newRouter(util.TCP, false)
	peer := util.NewAddress(util.TCP, []byte("10.0.0.1:9000"))
	first := util.RandomLocalAddress()
	second := util.RandomLocalAddress()

	if err := r.register([]*util.Address{peer}, first); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.register([]*util.Address{peer}, second); err != nil {
		t.Fatalf("conflicting register should still succeed: %v", err)
	}
	got, ok := r.lookup(peer)
	if !ok || !got.Equals(first) {
		t.Fatalf("expected first binding %v to survive, got %v", first, got)
	}
}

func TestUnregisterDropsOwnedPeers(t *testing.T) {
	r := newRouter(util.TCP, false)
	peerA := util.NewAddress(util.TCP, []byte("10.0.0.1:9000"))
	peerB := util.NewAddress(util.TCP, []byte("10.0.0.2:9000"))
	tx := util.RandomLocalAddress()

	if err := r.register([]*util.Address{peerA, peerB}, tx); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.unregister(tx)

	if _, ok := r.lookup(peerA); ok {
		t.Fatalf("peerA still routed after unregister")
	}
	if _, ok := r.lookup(peerB); ok {
		t.Fatalf("peerB still routed after unregister")
	}
}

// TestLookupExpiresStalePeer checks that a peer map entry past its TTL is
// treated as unregistered instead of being handed back to the caller.
func TestLookupExpiresStalePeer(t *testing.T) {
	r := newRouter(util.TCP, false)
	r.peerTTL = util.NewRelativeTime(0)
	peer := util.NewAddress(util.TCP, []byte("10.0.0.1:9000"))
	tx := util.RandomLocalAddress()

	if err := r.register([]*util.Address{peer}, tx); err != nil {
		t.Fatalf("register: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok := r.lookup(peer); ok {
		t.Fatalf("expected expired peer entry to be evicted")
	}
}

func TestRegisterMarshalRoundtrip(t *testing.T) {
	reg := &Register{
		Accepts:  []*util.Address{util.NewAddress(util.UDP, []byte("1.2.3.4:5"))},
		SelfAddr: util.RandomLocalAddress(),
	}
	data, err := marshalRegister(reg)
	if err != nil {
		t.Fatalf("marshalRegister: %v", err)
	}
	got, err := unmarshalRegister(data)
	if err != nil {
		t.Fatalf("unmarshalRegister: %v", err)
	}
	if len(got.Accepts) != 1 || !got.Accepts[0].Equals(reg.Accepts[0]) {
		t.Fatalf("accepts mismatch: %v", got.Accepts)
	}
	if !got.SelfAddr.Equals(reg.SelfAddr) {
		t.Fatalf("self_addr mismatch: %v", got.SelfAddr)
	}
}

// TestSendWorkerFailureCleanup checks that a write failure runs the send
// worker's onFail callback and that, once it has, the peer the worker
// owned is no longer routed.
func TestSendWorkerFailureCleanup(t *testing.T) {
	_, root := node.New(context.Background())
	r := newRouter(util.TCP, false)
	peer := util.NewAddress(util.TCP, []byte("10.0.0.1:1"))
	txAddr := util.RandomLocalAddress()
	if err := r.register([]*util.Address{peer}, txAddr); err != nil {
		t.Fatalf("register: %v", err)
	}

	var failed atomic.Bool
	sw := &sendWorker{
		addr: txAddr,
		write: func(_ *util.Address, _ *message.TransportMessage) error {
			return errors.New("boom")
		},
		onFail: func() {
			failed.Store(true)
			r.unregister(txAddr)
		},
	}
	if _, err := root.StartWorker([]*util.Address{txAddr}, sw); err != nil {
		t.Fatalf("StartWorker: %v", err)
	}

	onward := util.NewRoute(txAddr, peer)
	lm := message.NewLocalMessage(message.NewTransportMessage(onward, util.NewRoute(), []byte("x")))
	if err := root.DispatchRaw(lm); err != nil {
		t.Fatalf("DispatchRaw: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !failed.Load() {
		time.Sleep(5 * time.Millisecond)
	}
	if !failed.Load() {
		t.Fatalf("onFail was not called")
	}
	if _, ok := r.lookup(peer); ok {
		t.Fatalf("peer still routed after send failure")
	}
}
