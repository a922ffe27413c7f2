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

package message

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/bfix-fabric/fabricnode/util"
)

// ErrProtocolVersion signals a TransportMessage with an unsupported
// wire version.
var ErrProtocolVersion = fmt.Errorf("unsupported transport message version")

// ErrFrameTooLarge signals a message whose encoding is longer than
// MaxFrame and so cannot be given a u16 length prefix.
var ErrFrameTooLarge = fmt.Errorf("frame exceeds maximum size")

// MaxFrame is the largest payload a u16 length prefix can carry.
const MaxFrame = math.MaxUint16

//----------------------------------------------------------------------
// Address / Route encoding:
//   Address = u8 type + varint len + value
//   Route   = varint n + n addresses
//----------------------------------------------------------------------

func marshalAddress(buf *bytes.Buffer, a *util.Address) {
	buf.WriteByte(a.Type)
	writeVarint(buf, uint64(len(a.Value)))
	buf.Write(a.Value)
}

func unmarshalAddress(r *bytes.Reader) (*util.Address, error) {
	typ, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("address: read type: %w", err)
	}
	n, err := readVarint(r)
	if err != nil {
		return nil, fmt.Errorf("address: read length: %w", err)
	}
	val := make([]byte, n)
	if _, err := io.ReadFull(r, val); err != nil {
		return nil, fmt.Errorf("address: read value: %w", err)
	}
	return util.NewAddress(typ, val), nil
}

func marshalRoute(buf *bytes.Buffer, route *util.Route) {
	hops := route.Hops()
	writeVarint(buf, uint64(len(hops)))
	for _, a := range hops {
		marshalAddress(buf, a)
	}
}

func unmarshalRoute(r *bytes.Reader) (*util.Route, error) {
	n, err := readVarint(r)
	if err != nil {
		return nil, fmt.Errorf("route: read count: %w", err)
	}
	hops := make([]*util.Address, 0, n)
	for i := uint64(0); i < n; i++ {
		a, err := unmarshalAddress(r)
		if err != nil {
			return nil, fmt.Errorf("route: hop %d: %w", i, err)
		}
		hops = append(hops, a)
	}
	return util.NewRoute(hops...), nil
}

func writeVarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readVarint(r *bytes.Reader) (uint64, error) {
	return binary.ReadUvarint(r)
}

//----------------------------------------------------------------------
// TransportMessage encoding: u8 version + Route onward + Route return +
// varint len + payload.
//----------------------------------------------------------------------

// Marshal serializes a TransportMessage to its wire form.
func Marshal(tm *TransportMessage) ([]byte, error) {
	if tm.Version != WireVersion {
		return nil, ErrProtocolVersion
	}
	buf := new(bytes.Buffer)
	buf.WriteByte(tm.Version)
	marshalRoute(buf, tm.OnwardRoute)
	marshalRoute(buf, tm.ReturnRoute)
	writeVarint(buf, uint64(len(tm.Payload)))
	buf.Write(tm.Payload)
	return buf.Bytes(), nil
}

// Unmarshal decodes a TransportMessage from its wire form.
func Unmarshal(data []byte) (*TransportMessage, error) {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("transport message: read version: %w", err)
	}
	if version != WireVersion {
		return nil, ErrProtocolVersion
	}
	onward, err := unmarshalRoute(r)
	if err != nil {
		return nil, fmt.Errorf("transport message: onward route: %w", err)
	}
	ret, err := unmarshalRoute(r)
	if err != nil {
		return nil, fmt.Errorf("transport message: return route: %w", err)
	}
	n, err := readVarint(r)
	if err != nil {
		return nil, fmt.Errorf("transport message: payload length: %w", err)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("transport message: payload: %w", err)
	}
	return &TransportMessage{
		Version:     version,
		OnwardRoute: onward,
		ReturnRoute: ret,
		Payload:     payload,
	}, nil
}

//----------------------------------------------------------------------
// Frame codec: u16 len + TransportMessage bytes, grounded on
// transport/reader_writer.go's header-then-body read pattern.
//----------------------------------------------------------------------

// WriteFrame writes a length-prefixed TransportMessage to w.
func WriteFrame(w io.Writer, tm *TransportMessage) error {
	body, err := Marshal(tm)
	if err != nil {
		return err
	}
	if len(body) > MaxFrame {
		return ErrFrameTooLarge
	}
	hdr := make([]byte, 2)
	binary.BigEndian.PutUint16(hdr, uint16(len(body)))
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed TransportMessage from r.
func ReadFrame(r io.Reader) (*TransportMessage, error) {
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(hdr)
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return Unmarshal(body)
}
