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

package pathcodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	base := "/var/cache/filecached"
	path := Encode(base, "thumbnails", 0x1a2b, "photo.jpg")
	require.Equal(t, "/var/cache/filecached/thumbnails/1a/1a2b.jpg", path)

	id, typeName, err := Decode(base, path)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1a2b), id)
	require.Equal(t, "thumbnails", typeName)
}

func TestEncodePreservesExtension(t *testing.T) {
	path := Encode("/base", "docs", 5, "report.final.pdf")
	require.Equal(t, "/base/docs/00/5.pdf", path)
}

func TestEncodeShardsSmallIDs(t *testing.T) {
	path := Encode("/base", "t", 1, "a")
	require.Equal(t, "/base/t/00/1", path)
}

func TestDecodeRejectsOutsideBase(t *testing.T) {
	_, _, err := Decode("/base/t", "/other/path/x")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestDecodeRejectsNonHexID(t *testing.T) {
	_, _, err := Decode("/base", "/base/t/zz/not-hex.txt")
	require.Error(t, err)
}

func TestDecodeRejectsWrongDepth(t *testing.T) {
	_, _, err := Decode("/base", "/base/t/extra/00/5")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestTypeOf(t *testing.T) {
	path := Encode("/base", "thumbnails", 9, "x.png")
	require.Equal(t, "thumbnails", TypeOf("/base", path))
	require.Equal(t, "", TypeOf("/base", "/elsewhere"))
}
