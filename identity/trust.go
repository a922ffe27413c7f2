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

package identity

// TrustPolicy decides whether a handshake's authenticated peer identity
// should be accepted. It is checked on both sides after key
// derivation, against the peer's authenticated identifier only — never
// against unauthenticated handshake material.
type TrustPolicy interface {
	Accepts(peer *Identifier) bool
}

// trustFunc adapts a plain function to TrustPolicy.
type trustFunc func(peer *Identifier) bool

func (f trustFunc) Accepts(peer *Identifier) bool { return f(peer) }

// TrustAny accepts every authenticated peer. Useful for listeners that
// defer trust decisions to an access-control layer further in.
func TrustAny() TrustPolicy {
	return trustFunc(func(*Identifier) bool { return true })
}

// TrustPinned accepts only the named identifiers.
func TrustPinned(allowed ...*Identifier) TrustPolicy {
	return trustFunc(func(peer *Identifier) bool {
		for _, a := range allowed {
			if a.Equals(peer) {
				return true
			}
		}
		return false
	})
}
