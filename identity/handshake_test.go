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

import (
	"bytes"
	"testing"
)

// runHandshake drives both sides of the three-message exchange to
// completion and returns both handshake objects, ready.
func runHandshake(t *testing.T, vault Vault, alice, bob *Identity, policy TrustPolicy) (*handshake, *handshake) {
	t.Helper()
	hi, err := newHandshake(vault, alice, policy, true)
	if err != nil {
		t.Fatalf("newHandshake initiator: %v", err)
	}
	hr, err := newHandshake(vault, bob, policy, false)
	if err != nil {
		t.Fatalf("newHandshake responder: %v", err)
	}
	m1, err := hi.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	m2, err := hr.Recv(m1)
	if err != nil {
		t.Fatalf("responder recvM1: %v", err)
	}
	m3, err := hi.Recv(m2)
	if err != nil {
		t.Fatalf("initiator recvM2: %v", err)
	}
	if hi.state != StateReady {
		t.Fatalf("expected initiator ready, got state %d", hi.state)
	}
	if reply, err := hr.Recv(m3); err != nil {
		t.Fatalf("responder recvM3: %v", err)
	} else if reply != nil {
		t.Fatalf("expected no reply to message 3, got %d bytes", len(reply))
	}
	if hr.state != StateReady {
		t.Fatalf("expected responder ready, got state %d", hr.state)
	}
	return hi, hr
}

func TestHandshakeSuccessDerivesMatchingKeys(t *testing.T) {
	vault := NewSoftwareVault()
	alice := NewIdentity()
	bob := NewIdentity()
	hi, hr := runHandshake(t, vault, alice, bob, TrustAny())

	if !hi.peerID.Equals(bob.Identifier()) {
		t.Fatal("initiator did not authenticate responder's identity")
	}
	if !hr.peerID.Equals(alice.Identifier()) {
		t.Fatal("responder did not authenticate initiator's identity")
	}
	if !bytes.Equal(hi.sendKey(), hr.recvKey()) {
		t.Fatal("initiator send key does not match responder recv key")
	}
	if !bytes.Equal(hi.recvKey(), hr.sendKey()) {
		t.Fatal("initiator recv key does not match responder send key")
	}
}

func TestHandshakeTrustRejection(t *testing.T) {
	vault := NewSoftwareVault()
	alice := NewIdentity()
	bob := NewIdentity()
	onlySomeoneElse := TrustPinned(NewIdentity().Identifier())

	hi, err := newHandshake(vault, alice, onlySomeoneElse, true)
	if err != nil {
		t.Fatal(err)
	}
	hr, err := newHandshake(vault, bob, TrustAny(), false)
	if err != nil {
		t.Fatal(err)
	}
	m1, _ := hi.Start()
	m2, err := hr.Recv(m1)
	if err != nil {
		t.Fatalf("responder recvM1: %v", err)
	}
	if _, err := hi.Recv(m2); err != ErrTrustCheckFailed {
		t.Fatalf("expected ErrTrustCheckFailed, got %v", err)
	}
}

func TestHandshakeRejectsTamperedCredentials(t *testing.T) {
	vault := NewSoftwareVault()
	alice := NewIdentity()
	bob := NewIdentity()

	hi, err := newHandshake(vault, alice, TrustAny(), true)
	if err != nil {
		t.Fatal(err)
	}
	hr, err := newHandshake(vault, bob, TrustAny(), false)
	if err != nil {
		t.Fatal(err)
	}
	m1, _ := hi.Start()
	m2, err := hr.Recv(m1)
	if err != nil {
		t.Fatal(err)
	}
	m2[len(m2)-1] ^= 0xFF
	if _, err := hi.Recv(m2); err != ErrHandshakeProtocol {
		t.Fatalf("expected ErrHandshakeProtocol on tampered ciphertext, got %v", err)
	}
}
