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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bfix-fabric/fabricnode/config"
	"github.com/bfix-fabric/fabricnode/manager"
	"github.com/bfix-fabric/fabricnode/node"
	"github.com/bfix-fabric/fabricnode/store"
	"github.com/bfix-fabric/fabricnode/util"
)

// storageFromConfig opens the AuthenticatedStorage backend the node
// manager persists secure-channel state through. An unconfigured (zero
// value) Storage section defaults to a local SQLite file named after
// the node, so a minimal configuration still runs.
func storageFromConfig(ctx context.Context, cfg config.NodeConfig) (store.AuthenticatedStorage, error) {
	backend := cfg.Storage.Backend
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "sqlite":
		dsn := cfg.Storage.DSN
		if dsn == "" {
			dsn = cfg.NodeName + ".db"
		}
		return store.NewSQLStorage(ctx, "sqlite3", dsn)
	case "mysql":
		if cfg.Storage.DSN == "" {
			return nil, fmt.Errorf("storage backend %q requires a dsn", backend)
		}
		return store.NewSQLStorage(ctx, "mysql", cfg.Storage.DSN)
	case "redis":
		if cfg.Storage.DSN == "" {
			return nil, fmt.Errorf("storage backend %q requires a dsn (host:port)", backend)
		}
		return store.NewRedisStorage(ctx, cfg.Storage.DSN, cfg.Storage.RedisDB)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// startConfiguredServices issues one manager.Request per enabled
// startup_services entry, in the order a node needs them available:
// vault before identity, identity before anything that signs or
// verifies with it. It starts no transport. It talks to the node manager the same way an external
// caller would, over ctx.SendAndReceive, rather than reaching into
// NodeManager's unexported methods directly.
func startConfiguredServices(ctx context.Context, root *node.Context, cfg config.NodeConfig) error {
	svc := cfg.StartupServices

	if svc.Vault != nil && !svc.Vault.Disabled {
		if _, err := callManager(ctx, root, &manager.Request{
			Kind:         manager.KindStartService,
			StartService: &manager.StartServiceRequest{Kind: manager.ServiceVault},
		}); err != nil {
			return fmt.Errorf("vault: %w", err)
		}
	}

	if svc.Identity != nil && !svc.Identity.Disabled {
		req := &manager.StartServiceRequest{Kind: manager.ServiceIdentity}
		if svc.Identity.Seed != "" {
			seed, err := util.DecodeStringToBinary(svc.Identity.Seed, 32)
			if err != nil {
				return fmt.Errorf("identity: invalid seed: %w", err)
			}
			req.Seed = seed
		}
		if _, err := callManager(ctx, root, &manager.Request{
			Kind:         manager.KindStartService,
			StartService: req,
		}); err != nil {
			return fmt.Errorf("identity: %w", err)
		}
	}

	if err := maybeStartAddressedService(ctx, root, manager.ServiceSecureChannelListener, svc.SecureChannelListener); err != nil {
		return fmt.Errorf("secure_channel_listener: %w", err)
	}
	if cfg.EnableCredentialChecks {
		if err := maybeStartAddressedService(ctx, root, manager.ServiceVerifier, svc.Verifier); err != nil {
			return fmt.Errorf("verifier: %w", err)
		}
		if err := maybeStartAddressedService(ctx, root, manager.ServiceAuthenticator, svc.Authenticator); err != nil {
			return fmt.Errorf("authenticator: %w", err)
		}
	}
	return nil
}

// maybeStartAddressedService starts one of the address-bound service
// kinds (secure_channel_listener, verifier, authenticator) if sc is
// present and enabled.
func maybeStartAddressedService(ctx context.Context, root *node.Context, kind string, sc *config.ServiceConfig) error {
	if sc == nil || sc.Disabled {
		return nil
	}
	if sc.Address == "" {
		return fmt.Errorf("%s: requires an address", kind)
	}
	req := &manager.StartServiceRequest{
		Kind:      kind,
		Address:   util.NewLocalAddress([]byte(sc.Address)),
		PinnedHex: sc.PinnedHex,
	}
	_, err := callManager(ctx, root, &manager.Request{
		Kind:         manager.KindStartService,
		StartService: req,
	})
	return err
}

// callManager round-trips one request to the node manager and returns
// its decoded response, failing loudly if the manager itself rejected
// it.
func callManager(ctx context.Context, root *node.Context, req *manager.Request) (*manager.Response, error) {
	body, err := manager.MarshalRequest(req)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	data, err := root.SendAndReceive(cctx, util.NewRoute(manager.Address), body, 10*time.Second)
	if err != nil {
		return nil, err
	}
	resp, err := manager.UnmarshalResponse(data)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("%s", resp.Error)
	}
	return resp, nil
}
