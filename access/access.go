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

// Package access provides predicate-based AccessControl implementations.
// node.AccessControl is the capability interface itself; this package
// supplies concrete policies a worker can be started with.
package access

import (
	"github.com/bfix-fabric/fabricnode/identity"
	"github.com/bfix-fabric/fabricnode/message"
	"github.com/bfix-fabric/fabricnode/node"
)

// IdentityAccessControl authorizes only messages that carry an
// IdentitySecureChannelLocalInfo naming a matching authenticated peer —
// i.e. messages that arrived over a secure channel the named identity
// initiated or accepted. A message sent without going through a secure
// channel carries no such local info and is always denied, the same as
// one arriving through a channel authenticated to a different identity.
type IdentityAccessControl struct {
	id *identity.Identifier
}

// NewIdentityAccessControl returns an AccessControl that allows only
// traffic authenticated to id.
func NewIdentityAccessControl(id *identity.Identifier) *IdentityAccessControl {
	return &IdentityAccessControl{id: id}
}

var _ node.AccessControl = (*IdentityAccessControl)(nil)

// IsAuthorized implements node.AccessControl.
func (a *IdentityAccessControl) IsAuthorized(routed *node.Routed) bool {
	info, ok := message.LocalInfoOf[identity.IdentitySecureChannelLocalInfo](routed.LocalMessage())
	if !ok || info.TheirIdentityID == nil {
		return false
	}
	return info.TheirIdentityID.Equals(a.id)
}
