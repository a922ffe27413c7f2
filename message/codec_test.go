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
	"testing"

	"github.com/bfix-fabric/fabricnode/util"
)

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	onward := util.NewRoute(
		util.NewAddress(util.TCP, []byte("127.0.0.1:4000")),
		util.NewAddress(util.TCP, []byte("127.0.0.1:4001")),
	)
	ret := util.NewRoute(util.RandomLocalAddress())
	tm := NewTransportMessage(onward, ret, []byte("hello world"))

	raw, err := Marshal(tm)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Version != tm.Version {
		t.Fatalf("version mismatch: %d != %d", got.Version, tm.Version)
	}
	if !bytes.Equal(got.Payload, tm.Payload) {
		t.Fatalf("payload mismatch: %q != %q", got.Payload, tm.Payload)
	}
	if got.OnwardRoute.Len() != tm.OnwardRoute.Len() {
		t.Fatalf("onward route length mismatch: %d != %d", got.OnwardRoute.Len(), tm.OnwardRoute.Len())
	}
	for i, h := range got.OnwardRoute.Hops() {
		if !h.Equals(tm.OnwardRoute.Hops()[i]) {
			t.Fatalf("onward hop %d mismatch: %v != %v", i, h, tm.OnwardRoute.Hops()[i])
		}
	}
}

func TestUnmarshalRejectsBadVersion(t *testing.T) {
	tm := NewTransportMessage(util.NewRoute(), util.NewRoute(), []byte("x"))
	raw, err := Marshal(tm)
	if err != nil {
		t.Fatal(err)
	}
	raw[0] = 0xff
	if _, err := Unmarshal(raw); err != ErrProtocolVersion {
		t.Fatalf("expected ErrProtocolVersion, got %v", err)
	}
}

func TestFrameRoundtrip(t *testing.T) {
	tm := NewTransportMessage(
		util.NewRoute(util.NewAddress(util.UDP, []byte("10.0.0.1:9000"))),
		util.NewRoute(),
		[]byte("payload"),
	)
	buf := new(bytes.Buffer)
	if err := WriteFrame(buf, tm); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got.Payload, tm.Payload) {
		t.Fatalf("payload mismatch after frame roundtrip")
	}
}

func TestFrameConcatenation(t *testing.T) {
	tm1 := NewTransportMessage(util.NewRoute(), util.NewRoute(), []byte("first"))
	tm2 := NewTransportMessage(util.NewRoute(), util.NewRoute(), []byte("second"))

	buf := new(bytes.Buffer)
	if err := WriteFrame(buf, tm1); err != nil {
		t.Fatal(err)
	}
	if err := WriteFrame(buf, tm2); err != nil {
		t.Fatal(err)
	}
	got1, err := ReadFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	got2, err := ReadFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got1.Payload, []byte("first")) || !bytes.Equal(got2.Payload, []byte("second")) {
		t.Fatalf("frames decoded out of order or corrupted")
	}
}
