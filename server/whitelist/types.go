/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package whitelist resolves the discovery server's address/application
// authorization list (spec.md §4.7).
package whitelist

// Entry is one configured rule. AddressOrHostname is resolved (DNS, if not
// already a literal address) into one or more matchable subnets.
// ApplicationName == "" matches any application.
type Entry struct {
	AddressOrHostname string
	SubnetMaskBits    int // 0..128
	ApplicationName   string
	Allow             bool
}

// resolved is one subnet derived from an Entry, always stored in 16-byte
// (IPv6-shaped) form so IPv4 and IPv4-mapped-IPv6 candidates compare
// uniformly.
type resolved struct {
	network         []byte // masked 16-byte network address
	maskBits        int    // effective bits within the 16-byte form
	applicationName string
	allow           bool
}
