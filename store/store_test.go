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

package store

import (
	"bytes"
	"context"
	"testing"
)

func TestSQLStorageRoundtrip(t *testing.T) {
	s, err := NewSQLStorage(context.Background(), "sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("NewSQLStorage: %v", err)
	}
	defer s.Close()

	if _, err := s.Get("channel-1", "k"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set("channel-1", "k", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("channel-1", "k")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("expected v1, got %q", got)
	}
	if err := s.Set("channel-1", "k", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	if got, _ = s.Get("channel-1", "k"); !bytes.Equal(got, []byte("v2")) {
		t.Fatalf("expected updated value v2, got %q", got)
	}
	if err := s.Del("channel-1", "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("channel-1", "k"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestScopeIsolation(t *testing.T) {
	s, err := NewSQLStorage(context.Background(), "sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Set("identity-A", "session", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("identity-B", "session", []byte("b")); err != nil {
		t.Fatal(err)
	}
	a, _ := s.Get("identity-A", "session")
	b, _ := s.Get("identity-B", "session")
	if bytes.Equal(a, b) {
		t.Fatal("expected distinct identities to have isolated storage")
	}
}
