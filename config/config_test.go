// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2019, 2020 Bernd Fix  >Y<
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

package config

import (
	"encoding/json"
	"testing"

	"github.com/bfix/gospel/logger"
)

const sampleConfig = `{
	"environ": {
		"DATADIR": "/var/lib/fabricnode"
	},
	"node": {
		"node_name": "alice",
		"bind_address": "0.0.0.0:2086",
		"skip_defaults": false,
		"enable_credential_checks": true,
		"storage": { "backend": "sqlite", "dsn": "${DATADIR}/alice.db" },
		"startup_services": {
			"vault": { "disabled": false },
			"identity": { "disabled": false },
			"secure_channel_listener": {
				"address": "0.0.0.0:2086",
				"disabled": false
			}
		}
	}
}`

func TestParseConfigBytes(t *testing.T) {
	logger.SetLogLevel(logger.WARN)

	if err := ParseConfigBytes([]byte(sampleConfig)); err != nil {
		t.Fatal(err)
	}
	if Cfg.Node.NodeName != "alice" {
		t.Fatalf("expected node_name alice, got %q", Cfg.Node.NodeName)
	}
	if Cfg.Node.StartupServices.SecureChannelListener == nil {
		t.Fatal("expected secure_channel_listener to be configured")
	}
	if Cfg.Node.Storage.DSN != "/var/lib/fabricnode/alice.db" {
		t.Fatalf("expected substituted storage dsn, got %q", Cfg.Node.Storage.DSN)
	}
	if _, err := json.Marshal(Cfg); err != nil {
		t.Fatal(err)
	}
}

func TestSubstitution(t *testing.T) {
	cfg := &ServiceConfig{Address: "${HOST}:${PORT}"}
	applySubstitutions(cfg, map[string]string{"HOST": "127.0.0.1", "PORT": "9000"})
	if cfg.Address != "127.0.0.1:9000" {
		t.Fatalf("expected substituted address, got %q", cfg.Address)
	}
}

func TestSubstitutionLeavesUnknownVarsUntouched(t *testing.T) {
	cfg := &ServiceConfig{Address: "${UNKNOWN}:9000"}
	applySubstitutions(cfg, map[string]string{})
	if cfg.Address != "${UNKNOWN}:9000" {
		t.Fatalf("expected unknown var left in place, got %q", cfg.Address)
	}
}
