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

package options

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	o := New()
	require.Equal(t, int64(DefaultSize), o.Size)
	require.Equal(t, int64(DefaultCost), o.Cost)
	require.Equal(t, int64(DefaultLifetime), o.Lifetime)
}

func TestEqual(t *testing.T) {
	a := New()
	a.LoWatermark, a.HiWatermark = 100, 200
	b := a.Clone()
	require.True(t, a.Equal(b))

	b.HiWatermark = 300
	require.False(t, a.Equal(b))
	require.False(t, a.Equal(nil))
}

func TestCloneIsIndependent(t *testing.T) {
	a := New()
	b := a.Clone()
	b.Cost = 1
	require.NotEqual(t, a.Cost, b.Cost)
}
