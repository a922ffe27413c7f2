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

// Package node implements the fabric's runtime: address-keyed worker
// mailboxes, the send/dispatch algorithm, router registration, and
// cluster-ordered shutdown.
package node

import "errors"

// Error taxonomy, named by domain rather than by Go type.
var (
	ErrNoRoute          = errors.New("node: no route")
	ErrUnknownRoute     = errors.New("node: unknown route")
	ErrInvalidAddress   = errors.New("node: invalid address")
	ErrAlreadyRegistered = errors.New("node: already registered")
	ErrTimeout          = errors.New("node: timeout")
	ErrCancelled        = errors.New("node: cancelled")
	ErrStopped          = errors.New("node: worker stopped")
	ErrNotAWorker       = errors.New("node: address is not a worker")
)
