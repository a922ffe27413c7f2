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

package manager

import (
	"encoding/json"

	"github.com/bfix-fabric/fabricnode/util"
)

// Request/response kinds the node manager accepts. Each travels as plain
// JSON, the same in-process-only convention the transport package's
// Register uses.
const (
	KindCreateTransport     = "create_transport"
	KindListTransports      = "list_transports"
	KindStartService        = "start_service"
	KindCreateSecureChannel = "create_secure_channel"
)

// Service kinds accepted by StartServiceRequest.Kind.
const (
	ServiceVault                 = "vault"
	ServiceIdentity              = "identity"
	ServiceSecureChannelListener = "secure_channel_listener"
	ServiceVerifier              = "verifier"
	ServiceAuthenticator         = "authenticator"
)

// Request is the tagged envelope for every node-manager call; exactly one
// of the Kind-matched fields is populated.
type Request struct {
	Kind                string                      `json:"kind"`
	CreateTransport     *CreateTransportRequest     `json:"create_transport,omitempty"`
	StartService        *StartServiceRequest        `json:"start_service,omitempty"`
	CreateSecureChannel *CreateSecureChannelRequest `json:"create_secure_channel,omitempty"`
}

// CreateTransportRequest starts a TCP or UDP router. Bind is a "host:port"
// listen spec, or "" for an outbound-only router.
type CreateTransportRequest struct {
	Type             string `json:"type"` // "tcp" or "udp"
	Bind             string `json:"bind"`
	AllowAutoConnect bool   `json:"allow_auto_connect"`
	UPnP             bool   `json:"upnp"` // ask the local gateway to forward Bind's port
}

// StartServiceRequest starts one of the node's identity-layer services.
// Address is ignored for Vault/Identity (which own no address of their
// own); for SecureChannelListener/Verifier/Authenticator a nil Address
// means a fresh random local address, returned in the response.
type StartServiceRequest struct {
	Kind      string        `json:"kind"`
	Address   *util.Address `json:"address,omitempty"`
	Seed      []byte        `json:"seed,omitempty"`       // identity: restore from seed instead of generating
	PinnedHex []string      `json:"pinned_hex,omitempty"` // base32 identifiers this service trusts; empty means trust-any for a listener, verifier/authenticator need exactly one
}

// CreateSecureChannelRequest opens an outbound secure channel along
// route, returning the channel's local application address.
type CreateSecureChannelRequest struct {
	Route     *util.Route `json:"route"`
	PinnedHex []string    `json:"pinned_hex,omitempty"`
	TimeoutMs int         `json:"timeout_ms"`
}

// Response is the tagged reply envelope. Error is set iff !OK.
type Response struct {
	OK         bool           `json:"ok"`
	Error      string         `json:"error,omitempty"`
	Address    *util.Address  `json:"address,omitempty"`
	Transports *TransportList `json:"transports,omitempty"`
}

// TransportStatus describes one live transport router.
type TransportStatus struct {
	TID     string `json:"tid"`
	TT      string `json:"tt"` // "tcp" or "udp"
	TM      string `json:"tm"` // "listen" or "connect"
	Payload string `json:"payload"`
}

// TransportList is the list_transports response body.
type TransportList struct {
	List []TransportStatus `json:"list"`
}

// MarshalRequest encodes a Request for sending to the node-manager
// address. Exported for callers outside this package (CLI tools, tests)
// that need to build a request without reaching into its fields by hand.
func MarshalRequest(r *Request) ([]byte, error) { return json.Marshal(r) }

// UnmarshalResponse decodes a Response received back from the node
// manager.
func UnmarshalResponse(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func marshalResponse(r *Response) ([]byte, error) { return json.Marshal(r) }

func unmarshalRequest(data []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
