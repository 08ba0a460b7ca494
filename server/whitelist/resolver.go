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

package whitelist

import (
	"net"
	"sync"

	libatm "github.com/blackbox-telemetry/blackbox/atomic"
)

// snapshot is one fully-resolved whitelist generation.
type snapshot struct {
	generation uint64
	entries    []resolved
}

// Resolver holds the discovery server's current whitelist. Writers
// (Configure) publish a fresh snapshot atomically; readers (Allow) never
// block on resolution in progress (spec.md §4.7, §5's "short critical
// section around pointer swap").
type Resolver struct {
	current libatm.Value[*snapshot]
	gen     libatm.Value[uint64]
}

// New returns an empty Resolver that denies everything until Configure runs.
func New() *Resolver {
	r := &Resolver{}
	r.current = libatm.NewValueDefault[*snapshot](&snapshot{}, &snapshot{})
	r.gen = libatm.NewValueDefault[uint64](0, 0)
	return r
}

// Configure resolves entries (spawning one DNS lookup per non-literal
// AddressOrHostname) and, once all resolutions complete, atomically swaps in
// the new snapshot. A Configure call started after this one completes first
// wins; this call's result is then discarded as stale (generation check).
func (r *Resolver) Configure(entries []Entry) error {
	gen := r.gen.Swap(r.gen.Load() + 1)
	myGen := gen + 1

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out = make([]resolved, 0, len(entries))
		byIdx = make([][]resolved, len(entries))
		firstErr error
	)

	for i, e := range entries {
		i, e := i, e
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := resolveEntry(e)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			byIdx[i] = res
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}

	// Keep the configured entry order so that Allow's first match is well defined.
	for _, res := range byIdx {
		out = append(out, res...)
	}

	if r.gen.Load() != myGen {
		// A newer Configure call finished first; discard this stale result.
		return nil
	}

	r.current.Store(&snapshot{generation: myGen, entries: out})
	return nil
}

func resolveEntry(e Entry) ([]resolved, error) {
	if e.SubnetMaskBits < 0 || e.SubnetMaskBits > 128 {
		return nil, ErrorBadMaskBits.Error()
	}

	ips, err := addrsFor(e.AddressOrHostname)
	if err != nil {
		return nil, err
	}

	out := make([]resolved, 0, len(ips))
	for _, ip := range ips {
		network16, bits := to16WithEffectiveMask(ip, e.SubnetMaskBits)
		out = append(out, resolved{
			network:         maskBytes(network16, bits),
			maskBits:        bits,
			applicationName: e.ApplicationName,
			allow:           e.Allow,
		})
	}
	return out, nil
}

func addrsFor(host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, ErrorBadAddress.Error(err)
	}
	return ips, nil
}

// to16WithEffectiveMask shifts an IPv4 subnet mask by +96 bits so it compares
// correctly against an IPv4-mapped-IPv6 candidate address (spec.md §4.7).
func to16WithEffectiveMask(ip net.IP, maskBits int) ([]byte, int) {
	if v4 := ip.To4(); v4 != nil {
		bits := maskBits + 96
		if bits > 128 {
			bits = 128
		}
		return ip.To16(), bits
	}
	return ip.To16(), maskBits
}

func maskBytes(ip []byte, bits int) []byte {
	out := make([]byte, len(ip))
	mask := net.CIDRMask(bits, len(ip)*8)
	for i := range ip {
		out[i] = ip[i] & mask[i]
	}
	return out
}

// Allow reports whether addr, claiming applicationName, is permitted. The
// first matching entry (by address subnet, then exact or wildcard
// application name) decides the outcome; no match is treated as deny.
func (r *Resolver) Allow(addr net.IP, applicationName string) bool {
	snap := r.current.Load()
	if snap == nil {
		return false
	}
	candidate := addr.To16()

	for _, e := range snap.entries {
		if e.applicationName != "" && e.applicationName != applicationName {
			continue
		}
		masked := maskBytes(candidate, e.maskBits)
		if bytesEqual(masked, e.network) {
			return e.allow
		}
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Generation reports the currently published snapshot's generation counter.
func (r *Resolver) Generation() uint64 {
	snap := r.current.Load()
	if snap == nil {
		return 0
	}
	return snap.generation
}
