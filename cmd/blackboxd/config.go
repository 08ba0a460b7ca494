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

// Package main wires the Blackbox discovery server and ingestion workers
// into a single long-running daemon, configured through spf13/viper and
// exposed through spf13/cobra (spec.md §6 "Configuration provider").
package main

import (
	"github.com/blackbox-telemetry/blackbox/server/whitelist"
)

// WhitelistEntry is the viper-unmarshalable mirror of whitelist.Entry
// (spec.md §4.7, §6 Configuration provider).
type WhitelistEntry struct {
	Address  string `mapstructure:"address"`
	MaskBits int    `mapstructure:"maskBits"`
	App      string `mapstructure:"app"`
	Allow    bool   `mapstructure:"allow"`
}

func (e WhitelistEntry) toEntry() whitelist.Entry {
	return whitelist.Entry{
		AddressOrHostname: e.Address,
		SubnetMaskBits:    e.MaskBits,
		ApplicationName:   e.App,
		Allow:             e.Allow,
	}
}

// ServerConfig is the daemon's full configuration surface, bound from a
// viper config file, environment variables, and command-line flags in that
// order of increasing precedence. It realizes the external "Configuration
// provider" collaborator spec.md §6 names without naming one: whitelist
// entries, the discovery port, the recording directory, and a retention
// knob that stays a stub per spec.md §1's exclusion of auto-deletion
// policies.
type ServerConfig struct {
	BindAddr      string           `mapstructure:"bindAddr"`
	Port          int              `mapstructure:"port"`
	EnableV6      bool             `mapstructure:"enableV6"`
	RecordingDir  string           `mapstructure:"recordingDir"`
	MaxRecordings int              `mapstructure:"maxRecordings"`
	Whitelist     []WhitelistEntry `mapstructure:"whitelist"`
	LogLevel      string           `mapstructure:"logLevel"`
}

func (c ServerConfig) whitelistEntries() []whitelist.Entry {
	out := make([]whitelist.Entry, 0, len(c.Whitelist))
	for _, e := range c.Whitelist {
		out = append(out, e.toEntry())
	}
	return out
}
