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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	loglvl "github.com/blackbox-telemetry/blackbox/logger/level"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "blackboxd",
	Short: "Blackbox discovery and recording server",
	Long: "blackboxd answers UDP discovery/reservation requests from Blackbox " +
		"clients, accepts the resulting TCP reservations, and ingests each " +
		"client's log stream into a per-application recording file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		return runServer(cmd.Context(), cfg)
	},
}

// Execute runs the root command; errors are reported to stderr and the
// process exits non-zero, the same contract every cobra-based CLI in the
// teacher's pack follows.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./blackboxd.yaml)")
	flags.String("bind-addr", "", "local address to bind discovery/reservation sockets (default all interfaces)")
	flags.Int("port", 0, "UDP discovery port (0 selects the protocol default, 1492)")
	flags.Bool("enable-v6", false, "also bind a udp6 discovery socket")
	flags.String("recording-dir", "", "directory recordings are written under (default: $LOCALAPPDATA/bb or ~/.local/share/bb)")
	flags.Int("max-recordings", 0, "retention knob consulted by an external cleanup policy (spec §1 excludes auto-deletion from this binary)")
	flags.String("log-level", "info", "minimum log level: debug, info, warning, error")

	_ = viper.BindPFlag("bindAddr", flags.Lookup("bind-addr"))
	_ = viper.BindPFlag("port", flags.Lookup("port"))
	_ = viper.BindPFlag("enableV6", flags.Lookup("enable-v6"))
	_ = viper.BindPFlag("recordingDir", flags.Lookup("recording-dir"))
	_ = viper.BindPFlag("maxRecordings", flags.Lookup("max-recordings"))
	_ = viper.BindPFlag("logLevel", flags.Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("blackboxd")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BLACKBOXD")
	viper.AutomaticEnv()

	// A missing config file is not fatal: flags and env vars alone are a
	// valid configuration for a quick loopback run.
	_ = viper.ReadInConfig()
}

func loadConfig() ServerConfig {
	cfg := ServerConfig{
		Port:          viper.GetInt("port"),
		BindAddr:      viper.GetString("bindAddr"),
		EnableV6:      viper.GetBool("enableV6"),
		RecordingDir:  viper.GetString("recordingDir"),
		MaxRecordings: viper.GetInt("maxRecordings"),
		LogLevel:      viper.GetString("logLevel"),
	}
	_ = viper.UnmarshalKey("whitelist", &cfg.Whitelist)
	return cfg
}

func parseLogLevel(s string) loglvl.Level {
	switch s {
	case "debug":
		return loglvl.DebugLevel
	case "warning", "warn":
		return loglvl.WarnLevel
	case "error":
		return loglvl.ErrorLevel
	default:
		return loglvl.InfoLevel
	}
}
