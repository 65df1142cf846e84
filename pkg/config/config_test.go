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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/var/cache/filecached", c.Main.BaseDir)
	require.Equal(t, "INFO", c.Logging.LogLevel)
}

func TestLoadParsesCachesAndSandbox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filecached.toml")
	const doc = `
[main]
base_dir = "/srv/filecached"
listen_socket = "/srv/filecached.sock"

[caches.photos]
lo_watermark = 1000
hi_watermark = 10000

[sandbox]
download_dir = "/srv/downloads"

[[sandbox.grants]]
principal = "alice"
prefix = "/srv/downloads/alice"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/filecached", c.Main.BaseDir)
	require.Contains(t, c.Caches, "photos")
	require.Equal(t, int64(1000), c.Caches["photos"].LoWatermark)
	require.Equal(t, "/srv/downloads", c.Sandbox.DownloadDir)
	require.Len(t, c.Sandbox.Grants, 1)
	require.Equal(t, "alice", c.Sandbox.Grants[0].Principal)
}

func TestLoadRejectsMissingBaseDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filecached.toml")
	require.NoError(t, os.WriteFile(path, []byte("[main]\nbase_dir = \"\"\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadWatermarks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filecached.toml")
	const doc = `
[main]
base_dir = "/srv/filecached"

[caches.bad]
lo_watermark = 100
hi_watermark = 50
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRecordsWarningForUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filecached.toml")
	const doc = `
[main]
base_dir = "/srv/filecached"
bogus_key = "x"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, c.LoaderWarnings)
}
