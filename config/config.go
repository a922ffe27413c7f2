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

// Package config holds the node launcher's external configuration: node
// identity, bind address, and which startup services to bring up, with
// ${VAR}-style substitution against an environment map the same way the
// teacher's config package does.
package config

import (
	"encoding/json"
	"io/ioutil"
	"reflect"
	"regexp"
	"strings"

	"github.com/bfix/gospel/logger"
)

// ServiceConfig is the shared shape every startup service entry has:
// where it binds (if it needs an address at all) and whether it should
// be started. Service-specific fields (Seed, PinnedHex) are only
// meaningful for the service kinds that use them.
type ServiceConfig struct {
	Address   string   `json:"address,omitempty"`
	Disabled  bool     `json:"disabled"`
	Seed      string   `json:"seed,omitempty"`       // identity: base32-encoded 32-byte seed
	PinnedHex []string `json:"pinned_hex,omitempty"` // identities this service trusts
}

// StartupServices lists the identity-layer services a node can bring up
// at launch. Each is optional; a nil entry is not started.
type StartupServices struct {
	Vault                 *ServiceConfig `json:"vault,omitempty"`
	Identity              *ServiceConfig `json:"identity,omitempty"`
	SecureChannelListener *ServiceConfig `json:"secure_channel_listener,omitempty"`
	Verifier              *ServiceConfig `json:"verifier,omitempty"`
	Authenticator         *ServiceConfig `json:"authenticator,omitempty"`
}

// StorageConfig selects the AuthenticatedStorage backend a launcher
// opens before starting the node manager. An empty Backend defaults to
// a local SQLite file named after the node.
type StorageConfig struct {
	Backend string `json:"backend,omitempty"` // "sqlite" (default), "mysql", "redis"
	DSN     string `json:"dsn,omitempty"`
	RedisDB int    `json:"redis_db,omitempty"`
}

// NodeConfig is the node-level configuration a launcher reads.
type NodeConfig struct {
	NodeName               string          `json:"node_name"`
	BindAddress            string          `json:"bind_address"`
	IdentityOverride       string          `json:"identity_override,omitempty"`
	ProjectAuthority       string          `json:"project_authority,omitempty"`
	SkipDefaults           bool            `json:"skip_defaults"`
	EnableCredentialChecks bool            `json:"enable_credential_checks"`
	Storage                StorageConfig   `json:"storage,omitempty"`
	StartupServices        StartupServices `json:"startup_services"`
}

// Environ holds ${VAR} substitution values read from the config file
// itself, the same indirection the teacher's config package uses so a
// deployment can template paths and endpoints without a separate
// templating pass.
type Environ map[string]string

// Config is the top-level configuration document.
type Config struct {
	Env  Environ    `json:"environ"`
	Node NodeConfig `json:"node"`
}

// Cfg is the process-wide configuration, set by ParseConfig. A launcher
// reads it directly, the same global-config convention the teacher's
// cmd/* binaries use.
var Cfg *Config

// ParseConfig reads a JSON-encoded configuration file, applies ${VAR}
// substitution, and sets Cfg.
func ParseConfig(fileName string) error {
	data, err := ioutil.ReadFile(fileName)
	if err != nil {
		return err
	}
	return ParseConfigBytes(data)
}

// ParseConfigBytes parses an already-read configuration document.
// Exposed separately so callers (and tests) can supply an in-memory
// document without a file on disk.
func ParseConfigBytes(data []byte) error {
	cfg := new(Config)
	if err := json.Unmarshal(data, cfg); err != nil {
		return err
	}
	applySubstitutions(cfg, cfg.Env)
	Cfg = cfg
	return nil
}

var rx = regexp.MustCompile(`\$\{([^\}]*)\}`)

// substString substitutes every ${NAME} occurrence in s with env[NAME],
// leaving unmatched names untouched.
func substString(s string, env map[string]string) string {
	matches := rx.FindAllStringSubmatch(s, -1)
	for _, m := range matches {
		if len(m[1]) == 0 {
			continue
		}
		subst, ok := env[m[1]]
		if !ok {
			continue
		}
		s = strings.Replace(s, "${"+m[1]+"}", subst, -1)
	}
	return s
}

// applySubstitutions walks x and rewrites every string value by
// repeatedly substituting ${VAR} references until a pass makes no
// further change, the same reflect-driven traversal the teacher's
// config package uses so new config fields never need new substitution
// code.
func applySubstitutions(x interface{}, env map[string]string) {
	var process func(v reflect.Value)
	process = func(v reflect.Value) {
		switch v.Kind() {
		case reflect.Ptr:
			if !v.IsNil() {
				process(v.Elem())
			}
		case reflect.Struct:
			for i := 0; i < v.NumField(); i++ {
				if fld := v.Field(i); fld.CanSet() {
					process(fld)
				}
			}
		case reflect.Slice, reflect.Array:
			for i := 0; i < v.Len(); i++ {
				process(v.Index(i))
			}
		case reflect.String:
			if !v.CanSet() {
				return
			}
			s := v.String()
			for {
				s1 := substString(s, env)
				if s1 == s {
					break
				}
				logger.Printf(logger.DBG, "[config] %s --> %s", s, s1)
				v.SetString(s1)
				s = s1
			}
		}
	}
	process(reflect.ValueOf(x))
}
