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

// Package identity implements authenticated, forward-secret secure
// channels overlaid on arbitrary routes, keyed by long-term
// node identities.
package identity

import (
	"github.com/bfix-fabric/fabricnode/util"

	"github.com/bfix/gospel/crypto/ed25519"
)

// Identifier names a node by its long-term public key, the way the
// teacher names a peer by its EdDSA public key (core/peer.go), but
// detached from any single transport or GNUnet-specific peer record.
type Identifier struct {
	pub *ed25519.PublicKey
}

// NewIdentifier wraps a public key as an identifier.
func NewIdentifier(pub *ed25519.PublicKey) *Identifier {
	return &Identifier{pub: pub}
}

// Bytes returns the raw public key.
func (id *Identifier) Bytes() []byte {
	return id.pub.Bytes()
}

// String renders the identifier the same way the teacher renders a
// PeerID: base32-encoded public key bytes.
func (id *Identifier) String() string {
	return util.EncodeBinaryToString(id.pub.Bytes())
}

// Equals reports whether two identifiers name the same public key.
func (id *Identifier) Equals(other *Identifier) bool {
	if id == nil || other == nil {
		return id == other
	}
	return id.String() == other.String()
}

// Identity is a node's long-term signing keypair, the root of trust for
// every secure channel it initiates or accepts.
type Identity struct {
	prv *ed25519.PrivateKey
}

// NewIdentity generates a fresh long-term identity.
func NewIdentity() *Identity {
	_, prv := ed25519.NewKeypair()
	return &Identity{prv: prv}
}

// NewIdentityFromSeed restores a long-term identity from a 32-byte seed,
// the way the teacher derives a local peer's key from its configured seed
// (core/peer.go's NewLocalPeer).
func NewIdentityFromSeed(seed []byte) *Identity {
	return &Identity{prv: ed25519.NewPrivateKeyFromSeed(seed)}
}

// Identifier returns this identity's public identifier.
func (i *Identity) Identifier() *Identifier {
	return NewIdentifier(i.prv.Public())
}

// IdentitySecureChannelLocalInfo is attached to a LocalMessage by a
// decryptor on every successfully decrypted inbound message, naming the
// authenticated remote party. It never crosses the wire (message.LocalInfo
// never does).
type IdentitySecureChannelLocalInfo struct {
	TheirIdentityID *Identifier
}
