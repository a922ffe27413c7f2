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

package transport

import (
	"net"
	"time"

	"github.com/miekg/dns"
)

// resolveHostname returns extra "host:port" endpoints for a peer address
// whose host part is a DNS name, by querying A/AAAA records directly
// rather than going through the platform resolver. A literal-IP endpoint
// or one the system resolver config can't be read for resolves to nothing
// extra; connect() still proceeds using the original endpoint.
func resolveHostname(endpoint string) []string {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil || net.ParseIP(host) != nil {
		return nil
	}
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return nil
	}
	server := net.JoinHostPort(conf.Servers[0], conf.Port)

	c := &dns.Client{Timeout: 2 * time.Second}
	var out []string
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(host), qtype)
		in, _, err := c.Exchange(m, server)
		if err != nil {
			continue
		}
		for _, ans := range in.Answer {
			var ip string
			switch rr := ans.(type) {
			case *dns.A:
				ip = rr.A.String()
			case *dns.AAAA:
				ip = rr.AAAA.String()
			default:
				continue
			}
			out = append(out, net.JoinHostPort(ip, port))
		}
	}
	return out
}
