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

import "fmt"

// Route is an ordered, explicit, source-routed list of addresses. The
// mutators (Step, Prepend, Append) change the Route in place; Clone gives
// an independent copy, so a Route must never be shared between workers
// that might mutate it concurrently.
type Route struct {
	hops []*Address
}

// NewRoute builds a Route from a list of addresses, head first.
func NewRoute(hops ...*Address) *Route {
	r := &Route{hops: make([]*Address, len(hops))}
	copy(r.hops, hops)
	return r
}

// ParseRoute accepts strings like ["a", "b#c", ...].
func ParseRoute(hops []string) (*Route, error) {
	r := &Route{hops: make([]*Address, 0, len(hops))}
	for _, h := range hops {
		a, err := ParseAddress(h)
		if err != nil {
			return nil, err
		}
		r.hops = append(r.hops, a)
	}
	return r, nil
}

// Len returns the number of remaining hops.
func (r *Route) Len() int {
	if r == nil {
		return 0
	}
	return len(r.hops)
}

// Empty reports whether the route has no remaining hops.
func (r *Route) Empty() bool {
	return r.Len() == 0
}

// Next peeks the head hop without consuming it. Returns nil if empty.
func (r *Route) Next() *Address {
	if r.Empty() {
		return nil
	}
	return r.hops[0]
}

// Step removes and returns the head hop. Returns an error on an empty
// route: onward_route must be non-empty at every hop until final local
// delivery, so stepping an empty route is always a caller bug.
func (r *Route) Step() (*Address, error) {
	if r.Empty() {
		return nil, fmt.Errorf("route: step on empty route")
	}
	hop := r.hops[0]
	r.hops = r.hops[1:]
	return hop, nil
}

// Prepend pushes addr onto the head of the route, in the order given:
// Prepend(a, b) leaves the route starting with a, then b. This matches
// the router's "prepend(onward); prepend(next)" double-prepend convention,
// where each call prepends one address and the head ends up being the
// address of the *last* call.
func (r *Route) Prepend(addrs ...*Address) *Route {
	for i := len(addrs) - 1; i >= 0; i-- {
		r.hops = append([]*Address{addrs[i]}, r.hops...)
	}
	return r
}

// Append pushes addr onto the tail of the route.
func (r *Route) Append(addrs ...*Address) *Route {
	r.hops = append(r.hops, addrs...)
	return r
}

// Clone returns an independent copy of the route, so callers that need
// to hold onto a route across a send (e.g. to build a reply) don't alias
// a route another worker may mutate.
func (r *Route) Clone() *Route {
	if r == nil {
		return NewRoute()
	}
	out := &Route{hops: make([]*Address, len(r.hops))}
	copy(out.hops, r.hops)
	return out
}

// Hops returns the remaining hops as a slice; callers must not mutate it.
func (r *Route) Hops() []*Address {
	if r == nil {
		return nil
	}
	return r.hops
}

// String renders the route as its hops joined by "->".
func (r *Route) String() string {
	s := ""
	for i, h := range r.Hops() {
		if i > 0 {
			s += "->"
		}
		s += h.String()
	}
	return s
}
