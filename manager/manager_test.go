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

package manager_test

import (
	"context"
	"testing"
	"time"

	"github.com/bfix-fabric/fabricnode/manager"
	"github.com/bfix-fabric/fabricnode/node"
	"github.com/bfix-fabric/fabricnode/util"
)

func startManager(t *testing.T) *node.Context {
	t.Helper()
	_, root := node.New(context.Background())
	m := manager.New(nil)
	if _, err := root.StartWorker([]*util.Address{manager.Address}, m); err != nil {
		t.Fatalf("StartWorker manager: %v", err)
	}
	return root
}

func call(t *testing.T, root *node.Context, req *manager.Request) *manager.Response {
	t.Helper()
	client := root.NewDetached(util.RandomLocalAddress())
	body, err := manager.MarshalRequest(req)
	if err != nil {
		t.Fatalf("MarshalRequest: %v", err)
	}
	route := util.NewRoute(manager.Address)
	if err := client.Send(route, body); err != nil {
		t.Fatalf("Send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	routed, err := client.Receive(ctx, 2*time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	resp, err := manager.UnmarshalResponse(routed.Body())
	if err != nil {
		t.Fatalf("UnmarshalResponse: %v", err)
	}
	return resp
}

func TestCreateAndListTransports(t *testing.T) {
	root := startManager(t)

	resp := call(t, root, &manager.Request{
		Kind: manager.KindCreateTransport,
		CreateTransport: &manager.CreateTransportRequest{
			Type: "tcp",
			Bind: "127.0.0.1:0",
		},
	})
	if !resp.OK {
		t.Fatalf("create_transport failed: %s", resp.Error)
	}
	if resp.Address == nil {
		t.Fatalf("create_transport: expected a main address")
	}

	resp = call(t, root, &manager.Request{Kind: manager.KindListTransports})
	if !resp.OK {
		t.Fatalf("list_transports failed: %s", resp.Error)
	}
	if resp.Transports == nil || len(resp.Transports.List) != 1 {
		t.Fatalf("expected one transport, got %+v", resp.Transports)
	}
	if resp.Transports.List[0].TT != "tcp" || resp.Transports.List[0].TM != "listen" {
		t.Fatalf("unexpected transport status: %+v", resp.Transports.List[0])
	}
}

func TestStartServiceUnknownKind(t *testing.T) {
	root := startManager(t)
	resp := call(t, root, &manager.Request{
		Kind:        manager.KindStartService,
		StartService: &manager.StartServiceRequest{Kind: "not-a-real-service"},
	})
	if resp.OK {
		t.Fatalf("expected unknown service kind to fail")
	}
}

func TestCreateSecureChannelWithoutVaultFails(t *testing.T) {
	root := startManager(t)
	resp := call(t, root, &manager.Request{
		Kind: manager.KindCreateSecureChannel,
		CreateSecureChannel: &manager.CreateSecureChannelRequest{
			Route: util.NewRoute(util.RandomLocalAddress()),
		},
	})
	if resp.OK {
		t.Fatalf("expected create_secure_channel without a started vault/identity to fail")
	}
}
