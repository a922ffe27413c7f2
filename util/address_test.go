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

package util

import "testing"

func TestAddressRoundtrip(t *testing.T) {
	cases := []*Address{
		RandomLocalAddress(),
		NewAddress(TCP, []byte("127.0.0.1:4000")),
		NewAddress(UDP, []byte("127.0.0.1:5000")),
	}
	for _, a := range cases {
		s := a.String()
		b, err := ParseAddress(s)
		if err != nil {
			t.Fatalf("ParseAddress(%q): %v", s, err)
		}
		if !a.Equals(b) {
			t.Fatalf("roundtrip mismatch: %v != %v", a, b)
		}
	}
}

func TestAddressEquals(t *testing.T) {
	a := NewAddress(TCP, []byte("127.0.0.1:4000"))
	b := NewAddress(TCP, []byte("127.0.0.1:4000"))
	c := NewAddress(TCP, []byte("127.0.0.1:4001"))
	if !a.Equals(b) {
		t.Fatal("expected equal addresses")
	}
	if a.Equals(c) {
		t.Fatal("expected distinct addresses")
	}
}

func TestParseAddressMalformed(t *testing.T) {
	if _, err := ParseAddress("not-an-address"); err == nil {
		t.Fatal("expected error for malformed address")
	}
}

func TestRouteStepPrependAppend(t *testing.T) {
	a := NewAddress(TCP, []byte("a"))
	b := NewAddress(TCP, []byte("b"))
	c := NewAddress(TCP, []byte("c"))

	r := NewRoute(a, b)
	if r.Len() != 2 {
		t.Fatalf("expected len 2, got %d", r.Len())
	}
	head, err := r.Step()
	if err != nil {
		t.Fatal(err)
	}
	if !head.Equals(a) {
		t.Fatalf("expected head %v, got %v", a, head)
	}
	r.Append(c)
	if r.Next().String() != b.String() {
		t.Fatalf("expected next %v, got %v", b, r.Next())
	}

	empty := NewRoute()
	if _, err := empty.Step(); err == nil {
		t.Fatal("expected error stepping empty route")
	}
}

func TestRoutePrependOrder(t *testing.T) {
	onward := NewAddress(TCP, []byte("app"))
	next := NewAddress(TCP, []byte("peer"))
	r := NewRoute()
	// mirrors a router's rewrite: onward_route.step(); prepend(onward); prepend(next)
	r.Prepend(onward)
	r.Prepend(next)
	if !r.Next().Equals(next) {
		t.Fatalf("expected head %v, got %v", next, r.Next())
	}
}

func TestParseRoute(t *testing.T) {
	r, err := ParseRoute([]string{"1#127.0.0.1:4000", "1#127.0.0.1:5000"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 hops, got %d", r.Len())
	}
}
