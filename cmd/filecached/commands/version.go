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

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webosose/filecache/pkg/cache"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the filecached build and cache API versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("filecached %s (cache API %s)\n", ApplicationVersion, cache.Version)
		return nil
	},
}
