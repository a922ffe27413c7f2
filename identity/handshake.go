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
	"encoding/binary"
	"errors"
	"io"

	"github.com/bfix/gospel/crypto/ed25519"
)

// State is a position in the XX-style handshake state machine.
type State int

const (
	StateInit State = iota
	StateWaitM2
	StateWaitM3
	StateReady
	StateFailed
	StateClosed
)

var (
	ErrHandshakeProtocol = errors.New("identity: handshake protocol error")
	ErrTrustCheckFailed  = errors.New("identity: trust check failed")
	ErrReplayDetected    = errors.New("identity: replay detected")
)

// handshake drives one side of the three-message XX-style exchange keyed
// by the node's long-term identity. Messages 1 and 2 establish ephemeral
// DH; message 3 carries signed credentials and the initiator's
// authenticated identity.
type handshake struct {
	vault     Vault
	identity  *Identity
	policy    TrustPolicy
	initiator bool

	state State

	ephSecret *Secret
	ephPub    *ed25519.PublicKey
	peerEph   *ed25519.PublicKey

	peerID *Identifier

	// sendKey/recvKey are keyed by direction (initiator->responder and
	// responder->initiator), resolved into this side's send/recv once
	// both ephemeral keys are known.
	initToResp, respToInit []byte
}

func newHandshake(vault Vault, id *Identity, policy TrustPolicy, initiator bool) (*handshake, error) {
	sec, err := vault.CreateEphemeralSecret()
	if err != nil {
		return nil, err
	}
	return &handshake{
		vault:     vault,
		identity:  id,
		policy:    policy,
		initiator: initiator,
		state:     StateInit,
		ephSecret: sec,
		ephPub:    sec.Public(),
	}, nil
}

// transcript is the canonical binding for this handshake: the initiator's
// ephemeral public key followed by the responder's, known identically by
// both sides once message 1 and 2 have been exchanged.
func (h *handshake) transcript() []byte {
	if h.initiator {
		return append(append([]byte{}, h.ephPub.Bytes()...), h.peerEph.Bytes()...)
	}
	return append(append([]byte{}, h.peerEph.Bytes()...), h.ephPub.Bytes()...)
}

func (h *handshake) sendKey() []byte {
	if h.initiator {
		return h.initToResp
	}
	return h.respToInit
}

func (h *handshake) recvKey() []byte {
	if h.initiator {
		return h.respToInit
	}
	return h.initToResp
}

func (h *handshake) deriveKeys() error {
	dh, err := h.vault.DH(h.ephSecret, h.peerEph)
	if err != nil {
		return err
	}
	material, err := h.vault.HKDF(nil, dh, []byte("fabricnode-secure-channel"), 64)
	if err != nil {
		return err
	}
	h.initToResp = material[:32]
	h.respToInit = material[32:]
	return nil
}

// credentials returns {identity_pub(32) || sig(transcript)}.
func (h *handshake) credentials() ([]byte, error) {
	sig, err := h.vault.Sign(&Secret{prv: h.identity.prv}, h.transcript())
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, h.identity.Identifier().Bytes()...), sig...), nil
}

// acceptCredentials parses and verifies {identity_pub(32) || sig} against
// this handshake's transcript.
func (h *handshake) acceptCredentials(pt []byte) error {
	if len(pt) < 32 {
		return ErrHandshakeProtocol
	}
	idPub := ed25519.NewPublicKeyFromBytes(pt[:32])
	if idPub == nil {
		return ErrHandshakeProtocol
	}
	ok, err := h.vault.Verify(idPub, h.transcript(), pt[32:])
	if err != nil || !ok {
		return ErrHandshakeProtocol
	}
	h.peerID = NewIdentifier(idPub)
	return nil
}

func (h *handshake) checkTrust() error {
	if !h.policy.Accepts(h.peerID) {
		h.state = StateFailed
		return ErrTrustCheckFailed
	}
	return nil
}

// Start produces message 1 (initiator only).
func (h *handshake) Start() ([]byte, error) {
	if !h.initiator || h.state != StateInit {
		return nil, ErrHandshakeProtocol
	}
	h.state = StateWaitM2
	return h.ephPub.Bytes(), nil
}

// Recv feeds the next handshake wire message and returns an outbound
// reply (nil if none), advancing the state machine.
func (h *handshake) Recv(msg []byte) ([]byte, error) {
	switch h.state {
	case StateInit:
		if h.initiator {
			return nil, ErrHandshakeProtocol
		}
		return h.recvM1(msg)
	case StateWaitM2:
		if !h.initiator {
			return nil, ErrHandshakeProtocol
		}
		return h.recvM2(msg)
	case StateWaitM3:
		if h.initiator {
			return nil, ErrHandshakeProtocol
		}
		return h.recvM3(msg)
	default:
		return nil, ErrHandshakeProtocol
	}
}

// recvM1 (responder): msg = initiator's ephemeral public key.
func (h *handshake) recvM1(msg []byte) ([]byte, error) {
	pub := ed25519.NewPublicKeyFromBytes(msg)
	if pub == nil {
		return nil, ErrHandshakeProtocol
	}
	h.peerEph = pub
	if err := h.deriveKeys(); err != nil {
		return nil, err
	}
	creds, err := h.credentials()
	if err != nil {
		return nil, err
	}
	ct, err := h.vault.AEADEncrypt(h.sendKey(), nonceBytes(0), h.transcript(), creds)
	if err != nil {
		return nil, err
	}
	out := appendLenPrefixed(h.ephPub.Bytes(), ct)
	h.state = StateWaitM3
	return out, nil
}

// recvM2 (initiator): msg = responder ephemeral pub (32) + len-prefixed
// ciphertext carrying the responder's signed credentials.
func (h *handshake) recvM2(msg []byte) ([]byte, error) {
	if len(msg) < 32 {
		return nil, ErrHandshakeProtocol
	}
	pub := ed25519.NewPublicKeyFromBytes(msg[:32])
	if pub == nil {
		return nil, ErrHandshakeProtocol
	}
	h.peerEph = pub
	if err := h.deriveKeys(); err != nil {
		return nil, err
	}
	ct, err := readLenPrefixed(msg[32:])
	if err != nil {
		return nil, err
	}
	pt, err := h.vault.AEADDecrypt(h.recvKey(), nonceBytes(0), h.transcript(), ct)
	if err != nil {
		return nil, ErrHandshakeProtocol
	}
	if err := h.acceptCredentials(pt); err != nil {
		return nil, err
	}

	creds, err := h.credentials()
	if err != nil {
		return nil, err
	}
	ct3, err := h.vault.AEADEncrypt(h.sendKey(), nonceBytes(0), h.transcript(), creds)
	if err != nil {
		return nil, err
	}
	out := appendLenPrefixed(nil, ct3)

	if err := h.checkTrust(); err != nil {
		return nil, err
	}
	h.state = StateReady
	return out, nil
}

// recvM3 (responder): msg = len-prefixed ciphertext carrying the
// initiator's signed credentials.
func (h *handshake) recvM3(msg []byte) ([]byte, error) {
	ct, err := readLenPrefixed(msg)
	if err != nil {
		return nil, err
	}
	pt, err := h.vault.AEADDecrypt(h.recvKey(), nonceBytes(0), h.transcript(), ct)
	if err != nil {
		return nil, ErrHandshakeProtocol
	}
	if err := h.acceptCredentials(pt); err != nil {
		return nil, err
	}
	if err := h.checkTrust(); err != nil {
		return nil, err
	}
	h.state = StateReady
	return nil, nil
}

func nonceBytes(n uint64) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint64(b[4:], n)
	return b
}

func appendLenPrefixed(dst, data []byte) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(data)))
	dst = append(dst, tmp[:n]...)
	return append(dst, data...)
}

func readLenPrefixed(data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, ErrHandshakeProtocol
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, ErrHandshakeProtocol
	}
	return out, nil
}
