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

package manager

import (
	"time"

	"github.com/bfix-fabric/fabricnode/access"
	"github.com/bfix-fabric/fabricnode/identity"
	"github.com/bfix-fabric/fabricnode/node"
	"github.com/bfix-fabric/fabricnode/util"

	"github.com/bfix/gospel/crypto/ed25519"
)

func trustPolicyFor(pinnedHex []string) (identity.TrustPolicy, error) {
	if len(pinnedHex) == 0 {
		return identity.TrustAny(), nil
	}
	ids := make([]*identity.Identifier, 0, len(pinnedHex))
	for _, h := range pinnedHex {
		raw, err := util.DecodeStringToBinary(h, 32)
		if err != nil {
			return nil, err
		}
		ids = append(ids, identity.NewIdentifier(ed25519.NewPublicKeyFromBytes(raw)))
	}
	return identity.TrustPinned(ids...), nil
}

func (m *NodeManager) startService(req *StartServiceRequest) *Response {
	if req == nil {
		return errorResponse("start_service: missing request body")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	switch req.Kind {
	case ServiceVault:
		m.vault = identity.NewSoftwareVault()
		return &Response{OK: true}

	case ServiceIdentity:
		if len(req.Seed) > 0 {
			m.id = identity.NewIdentityFromSeed(req.Seed)
		} else {
			m.id = identity.NewIdentity()
		}
		return &Response{OK: true}

	case ServiceSecureChannelListener:
		if m.vault == nil || m.id == nil {
			return errorResponse("start_service: secure_channel_listener needs vault and identity started first")
		}
		policy, err := trustPolicyFor(req.PinnedHex)
		if err != nil {
			return errorResponse("start_service: %s", err)
		}
		addr := req.Address
		if addr == nil {
			addr = util.RandomLocalAddress()
		}
		if _, err := identity.CreateSecureChannelListener(m.ctx, m.vault, m.id, addr, policy, m.storage); err != nil {
			return errorResponse("start_service: %s", err)
		}
		return &Response{OK: true, Address: addr}

	case ServiceVerifier, ServiceAuthenticator:
		return m.startCredentialCheckpoint(req)

	default:
		return errorResponse("start_service: unknown kind %q", req.Kind)
	}
}

// startCredentialCheckpoint starts a worker gated by
// access.IdentityAccessControl: it only ever sees messages that already
// arrived over a secure channel from a trusted identity, and answers with
// a bare confirmation. The config schema names "verifier" and
// "authenticator" as distinct startup-service kinds but gives neither any
// further operational detail, so both resolve to this same checkpoint
// shape; the worker started is identical for both kinds and nothing
// records which kind was requested.
func (m *NodeManager) startCredentialCheckpoint(req *StartServiceRequest) *Response {
	if len(req.PinnedHex) != 1 {
		return errorResponse("start_service: %s needs exactly one pinned_hex identity", req.Kind)
	}
	raw, err := util.DecodeStringToBinary(req.PinnedHex[0], 32)
	if err != nil {
		return errorResponse("start_service: %s", err)
	}
	peer := identity.NewIdentifier(ed25519.NewPublicKeyFromBytes(raw))

	addr := req.Address
	if addr == nil {
		addr = util.RandomLocalAddress()
	}
	ac := access.NewIdentityAccessControl(peer)
	if _, err := m.ctx.StartWorker([]*util.Address{addr}, &checkpointWorker{}, node.WithAccessControl(ac)); err != nil {
		return errorResponse("start_service: %s", err)
	}
	return &Response{OK: true, Address: addr}
}

// checkpointWorker answers every message that passed its access control
// with a bare confirmation, giving the verifier/authenticator service
// kinds something to actually be.
type checkpointWorker struct{}

func (checkpointWorker) Initialize(ctx *node.Context) error { return nil }
func (checkpointWorker) Shutdown(ctx *node.Context)         {}
func (checkpointWorker) HandleMessage(ctx *node.Context, routed *node.Routed) {
	_ = ctx.Send(routed.ReturnRoute(), []byte("ok"))
}

func (m *NodeManager) createSecureChannel(req *CreateSecureChannelRequest) *Response {
	if req == nil || req.Route == nil {
		return errorResponse("create_secure_channel: missing route")
	}
	m.mu.Lock()
	vault, id, storage := m.vault, m.id, m.storage
	m.mu.Unlock()
	if vault == nil || id == nil {
		return errorResponse("create_secure_channel: needs vault and identity started first")
	}
	policy, err := trustPolicyFor(req.PinnedHex)
	if err != nil {
		return errorResponse("create_secure_channel: %s", err)
	}
	timeout := 120 * time.Second
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	appAddr, err := identity.CreateSecureChannel(m.ctx, vault, id, req.Route, policy, storage, timeout)
	if err != nil {
		return errorResponse("create_secure_channel: %s", err)
	}
	return &Response{OK: true, Address: appAddr}
}
