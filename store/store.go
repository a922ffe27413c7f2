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

// Package store provides the per-peer authenticated key-value storage the
// core consumes but does not own the durability policy for: it
// is scoped storage for secure-channel session state, keyed per identity.
package store

import "errors"

// ErrNotFound is returned by Get when scope/key has no value.
var ErrNotFound = errors.New("store: not found")

// AuthenticatedStorage is a scoped key-value capability: get, set,
// del, scoped per identity so unrelated channels can't read each other's
// session state.
type AuthenticatedStorage interface {
	Get(scope, key string) ([]byte, error)
	Set(scope, key string, val []byte) error
	Del(scope, key string) error
}

func scopedKey(scope, key string) string {
	return scope + "/" + key
}
