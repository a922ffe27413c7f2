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
	"sync"
	"time"

	"github.com/bfix-fabric/fabricnode/message"
	"github.com/bfix-fabric/fabricnode/node"
	"github.com/bfix-fabric/fabricnode/store"
	"github.com/bfix-fabric/fabricnode/util"

	"github.com/bfix/gospel/logger"
)

// ErrHandshakeTimeout is returned by CreateSecureChannel when the peer
// never completes the handshake within the given deadline.
var ErrHandshakeTimeout = errors.New("identity: secure channel handshake timed out")

// trustFailureNotice is sent in place of the next expected handshake
// message when one side's trust policy rejects the peer. It can never be
// mistaken for a real handshake message (those are raw key material or
// length-prefixed ciphertext), so the receiving side recognizes it before
// attempting to step its own state machine.
var trustFailureNotice = []byte("identity/trust-check-failed-notice")

// Channel is both ends of one secure-channel session: it speaks the
// handshake and, once ready, encrypts outbound traffic entering at appAddr
// and decrypts inbound traffic arriving at netAddr. A session never
// splits into separate encryptor/decryptor workers; one mailbox owning
// both addresses keeps the shared key material and nonce counters under a
// single lock instead of two workers coordinating across a channel.
type Channel struct {
	vault   Vault
	policy  TrustPolicy
	storage store.AuthenticatedStorage

	initiator    bool
	contactRoute *util.Route // initiator only: where to send message 1

	netAddr *util.Address // inbound: handshake messages and ciphertext from the peer
	appAddr *util.Address // outbound entry: plaintext from the local application

	mu          sync.Mutex
	hs          *handshake
	remoteRoute *util.Route // route back to the peer's netAddr, learned from its return route
	sendNonce   uint64
	recvNonce   uint64
	recvSeen    bool // recvNonce has never been strict before the first accepted message

	readyOnce sync.Once
	ready     chan struct{}
	err       error // set at most once, before ready closes; nil means success
}

func (c *Channel) Initialize(ctx *node.Context) error {
	if !c.initiator {
		return nil
	}
	msg1, err := c.hs.Start()
	if err != nil {
		return err
	}
	return ctx.Send(c.contactRoute, msg1)
}

func (c *Channel) Shutdown(ctx *node.Context) {
	c.mu.Lock()
	c.hs.state = StateClosed
	c.mu.Unlock()
}

func (c *Channel) HandleMessage(ctx *node.Context, routed *node.Routed) {
	if routed.MsgAddr().Equals(c.appAddr) {
		c.encryptAndForward(ctx, routed)
		return
	}
	c.handleNetMessage(ctx, routed)
}

func (c *Channel) handleNetMessage(ctx *node.Context, routed *node.Routed) {
	if bytes.Equal(routed.Body(), trustFailureNotice) {
		// The peer rejected us (or vice versa, and it raced us here); either
		// way the handshake can never complete. Stop without notifying
		// back, or both sides would volley the notice forever.
		c.fail(ctx, ErrTrustCheckFailed, false)
		return
	}
	c.mu.Lock()
	ready := c.hs.state == StateReady
	c.mu.Unlock()
	if ready {
		c.decryptAndForward(ctx, routed)
		return
	}
	c.stepHandshake(ctx, routed)
}

func (c *Channel) stepHandshake(ctx *node.Context, routed *node.Routed) {
	c.mu.Lock()
	if c.remoteRoute == nil {
		c.remoteRoute = routed.ReturnRoute().Clone()
	}
	reply, err := c.hs.Recv(routed.Body())
	becameReady := err == nil && c.hs.state == StateReady
	remote := c.remoteRoute
	c.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrTrustCheckFailed) {
			c.fail(ctx, err, true)
			return
		}
		logger.Printf(logger.WARN, "[identity] handshake step failed: %s", err)
		return
	}
	if reply != nil {
		if err := ctx.Send(remote, reply); err != nil {
			logger.Printf(logger.WARN, "[identity] failed to send handshake reply: %s", err)
		}
	}
	if becameReady {
		c.onReady()
	}
}

func (c *Channel) onReady() {
	c.mu.Lock()
	peerID := c.hs.peerID
	c.mu.Unlock()
	if c.storage != nil && peerID != nil {
		_ = c.storage.Set(peerID.String(), "established", []byte{1})
	}
	c.finish(nil)
}

// fail implements the Failed-state contract: the peer is told why (unless
// notifyPeer is false, which means it is the one who told us), and this
// side's worker stops. Stopping is deferred to its own goroutine because
// fail runs on the worker's own dispatch loop; StopWorker would otherwise
// deadlock waiting for that same loop to exit.
func (c *Channel) fail(ctx *node.Context, err error, notifyPeer bool) {
	c.mu.Lock()
	c.hs.state = StateFailed
	remote := c.remoteRoute
	c.mu.Unlock()

	if notifyPeer && remote != nil {
		if sendErr := ctx.Send(remote, trustFailureNotice); sendErr != nil {
			logger.Printf(logger.WARN, "[identity] failed to notify peer of trust check failure: %s", sendErr)
		}
	}
	c.finish(err)
	go func() { _ = ctx.StopWorker(c.netAddr) }()
}

// finish records the channel's outcome (success on the first call with a
// nil err, failure otherwise) and wakes anyone blocked on ready. Only the
// first call has any effect.
func (c *Channel) finish(err error) {
	c.readyOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.ready)
	})
}

// encryptAndForward takes the LocalMessage that arrived at appAddr (the
// remainder of its onward route is whatever the sender wants delivered on
// the far side of the tunnel, same double-hop convention a router uses at
// its own main_addr), wraps it whole as the plaintext, and sends the
// result to the peer's netAddr. Because the wrapped plaintext is itself a
// full TransportMessage, a nested channel's own wire frame is
// indistinguishable from any other payload, which is what makes tunneling
// just work.
func (c *Channel) encryptAndForward(ctx *node.Context, routed *node.Routed) {
	lm := routed.LocalMessage()
	onward := lm.OnwardRoute().Clone()
	if _, err := onward.Step(); err != nil {
		logger.Printf(logger.WARN, "[identity] dropping outbound message with empty onward route")
		return
	}
	inner := message.NewTransportMessage(onward, lm.ReturnRoute().Clone(), lm.Payload())
	pt, err := message.Marshal(inner)
	if err != nil {
		logger.Printf(logger.ERROR, "[identity] failed to marshal inner message: %s", err)
		return
	}

	c.mu.Lock()
	if c.hs.state != StateReady {
		c.mu.Unlock()
		logger.Printf(logger.WARN, "[identity] dropping outbound message: channel not ready")
		return
	}
	n := c.sendNonce
	c.sendNonce++
	key := c.hs.sendKey()
	ad := c.hs.transcript()
	remote := c.remoteRoute
	c.mu.Unlock()

	ct, err := c.vault.AEADEncrypt(key, nonceBytes(n), ad, pt)
	if err != nil {
		logger.Printf(logger.ERROR, "[identity] encrypt failed: %s", err)
		return
	}
	wire := make([]byte, 8+len(ct))
	binary.BigEndian.PutUint64(wire[:8], n)
	copy(wire[8:], ct)
	if err := ctx.Send(remote, wire); err != nil {
		logger.Printf(logger.WARN, "[identity] failed to send data message: %s", err)
	}
}

// decryptAndForward unwraps one data-phase message and re-enters local
// dispatch with the decrypted inner message, its return route extended so
// a reply naturally flows back out through this channel.
func (c *Channel) decryptAndForward(ctx *node.Context, routed *node.Routed) {
	body := routed.Body()
	if len(body) < 8 {
		logger.Printf(logger.WARN, "[identity] dropping undersized data message")
		return
	}
	n := binary.BigEndian.Uint64(body[:8])

	c.mu.Lock()
	if c.recvSeen && n <= c.recvNonce {
		c.mu.Unlock()
		logger.Printf(logger.WARN, "[identity] rejecting replayed nonce %d", n)
		return
	}
	key := c.hs.recvKey()
	ad := c.hs.transcript()
	peerID := c.hs.peerID
	c.mu.Unlock()

	pt, err := c.vault.AEADDecrypt(key, nonceBytes(n), ad, body[8:])
	if err != nil {
		logger.Printf(logger.WARN, "[identity] dropping message with failed AEAD authentication")
		return
	}

	c.mu.Lock()
	c.recvNonce = n
	c.recvSeen = true
	c.mu.Unlock()
	if c.storage != nil && peerID != nil {
		nb := make([]byte, 8)
		binary.BigEndian.PutUint64(nb, n)
		_ = c.storage.Set(peerID.String(), "recv_nonce", nb)
	}

	tm, err := message.Unmarshal(pt)
	if err != nil {
		logger.Printf(logger.WARN, "[identity] dropping message with malformed inner envelope: %s", err)
		return
	}
	tm.ReturnRoute.Prepend(c.appAddr)
	lm := message.NewLocalMessage(tm).WithLocalInfo(IdentitySecureChannelLocalInfo{TheirIdentityID: peerID})
	if err := ctx.DispatchRaw(lm); err != nil {
		logger.Printf(logger.WARN, "[identity] failed to forward decrypted message: %s", err)
	}
}

// Listener accepts inbound handshakes at a well-known address: every
// message 1 it receives spawns a fresh Channel as the responder and hands
// the message off to it, so concurrent peers never contend on one
// handshake state machine.
type Listener struct {
	vault    Vault
	identity *Identity
	policy   TrustPolicy
	storage  store.AuthenticatedStorage
}

func (l *Listener) Initialize(ctx *node.Context) error { return nil }
func (l *Listener) Shutdown(ctx *node.Context)         {}

func (l *Listener) HandleMessage(ctx *node.Context, routed *node.Routed) {
	hs, err := newHandshake(l.vault, l.identity, l.policy, false)
	if err != nil {
		logger.Printf(logger.ERROR, "[identity] listener: %s", err)
		return
	}
	ch := &Channel{
		vault:   l.vault,
		policy:  l.policy,
		storage: l.storage,
		hs:      hs,
		netAddr: util.RandomLocalAddress(),
		appAddr: util.RandomLocalAddress(),
		ready:   make(chan struct{}),
	}
	wctx, err := ctx.StartWorker([]*util.Address{ch.netAddr, ch.appAddr}, ch)
	if err != nil {
		logger.Printf(logger.ERROR, "[identity] listener: failed to start responder channel: %s", err)
		return
	}
	if err := wctx.Deliver(routed); err != nil {
		logger.Printf(logger.WARN, "[identity] listener: failed to hand off message 1: %s", err)
	}
}

// CreateSecureChannelListener starts a Listener bound to address. Every
// successful handshake against it produces its own independent Channel.
func CreateSecureChannelListener(ctx *node.Context, vault Vault, id *Identity, address *util.Address, policy TrustPolicy, storage store.AuthenticatedStorage) (*node.Context, error) {
	l := &Listener{vault: vault, identity: id, policy: policy, storage: storage}
	return ctx.StartWorker([]*util.Address{address}, l)
}

// CreateSecureChannel initiates a handshake along route and blocks until
// it completes or timeout elapses. On success it returns the local address
// the caller should send plaintext to; every message sent there is
// delivered, decrypted, to the matching address on the peer's side.
func CreateSecureChannel(ctx *node.Context, vault Vault, id *Identity, route *util.Route, policy TrustPolicy, storage store.AuthenticatedStorage, timeout time.Duration) (*util.Address, error) {
	hs, err := newHandshake(vault, id, policy, true)
	if err != nil {
		return nil, err
	}
	ch := &Channel{
		vault:        vault,
		policy:       policy,
		storage:      storage,
		initiator:    true,
		contactRoute: route.Clone(),
		hs:           hs,
		netAddr:      util.RandomLocalAddress(),
		appAddr:      util.RandomLocalAddress(),
		ready:        make(chan struct{}),
	}
	if _, err := ctx.StartWorker([]*util.Address{ch.netAddr, ch.appAddr}, ch); err != nil {
		return nil, err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch.ready:
		ch.mu.Lock()
		err := ch.err
		ch.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return ch.appAddr, nil
	case <-timer.C:
		_ = ctx.StopWorker(ch.netAddr)
		return nil, ErrHandshakeTimeout
	}
}

// StopSecureChannel tears down the channel owning addr (its net and app
// addresses are released together, since one mailbox owns both).
func StopSecureChannel(ctx *node.Context, addr *util.Address) error {
	return ctx.StopWorker(addr)
}
