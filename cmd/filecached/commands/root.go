/*
 * Copyright 2026 The Filecached Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package commands implements filecached's CLI.
package commands

import "github.com/spf13/cobra"

// ApplicationVersion is the build-time version string; overridden via
// -ldflags at release build time.
var ApplicationVersion = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "filecached",
	Short:         "filecached is a persistent, on-disk file cache daemon",
	Long:          `filecached manages quota-bounded cache types, each holding cached files on disk with watermark-governed reclamation, subscriptions, and orphan cleanup.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the TOML configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
