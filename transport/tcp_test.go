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
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/bfix-fabric/fabricnode/node"
	"github.com/bfix-fabric/fabricnode/util"
)

type echoWorker struct{}

func (echoWorker) Initialize(ctx *node.Context) error { return nil }
func (echoWorker) Shutdown(ctx *node.Context)         {}
func (echoWorker) HandleMessage(ctx *node.Context, routed *node.Routed) {
	_ = ctx.Send(routed.ReturnRoute(), routed.Body())
}

// TestTCPRoundtrip dials two independent nodes' TCP routers together and
// checks that a message sent from one reaches a worker on the other, with
// the echoed reply finding its way back through the auto-connected return
// path the send workers' advertised-address prepending sets up.
func TestTCPRoundtrip(t *testing.T) {
	_, rootA := node.New(context.Background())
	_, rootB := node.New(context.Background())

	tA, err := NewTCPRouter(rootA, "127.0.0.1:0", true, false)
	if err != nil {
		t.Fatalf("NewTCPRouter A: %v", err)
	}
	defer tA.Close()
	tB, err := NewTCPRouter(rootB, "127.0.0.1:0", true, false)
	if err != nil {
		t.Fatalf("NewTCPRouter B: %v", err)
	}
	defer tB.Close()

	echoAddr := util.RandomLocalAddress()
	if _, err := rootB.StartWorker([]*util.Address{echoAddr}, echoWorker{}); err != nil {
		t.Fatalf("StartWorker echo: %v", err)
	}

	peerB := util.NewAddress(util.TCP, []byte(tB.listener.Addr().String()))
	client := rootA.NewDetached(util.RandomLocalAddress())
	route := util.NewRoute(peerB, echoAddr)
	if err := client.Send(route, []byte("hello over tcp")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	routed, err := client.Receive(ctx, 3*time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(routed.Body(), []byte("hello over tcp")) {
		t.Fatalf("expected echoed payload, got %q", routed.Body())
	}
}

// TestTCPAutoConnectDisabled checks that a router with auto-connect off
// drops a message to an unknown peer instead of dialing it.
func TestTCPAutoConnectDisabled(t *testing.T) {
	_, rootA := node.New(context.Background())
	tA, err := NewTCPRouter(rootA, "", false, false)
	if err != nil {
		t.Fatalf("NewTCPRouter: %v", err)
	}
	defer tA.Close()

	unknown := util.NewAddress(util.TCP, []byte("127.0.0.1:1"))
	client := rootA.NewDetached(util.RandomLocalAddress())
	route := util.NewRoute(unknown, util.RandomLocalAddress())
	if err := client.Send(route, []byte("x")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := client.Receive(ctx, 200*time.Millisecond); err == nil {
		t.Fatalf("expected no reply when auto-connect is disabled")
	}
}
