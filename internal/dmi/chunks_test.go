package dmi

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodedWithDescription(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 1, 1))))
	out, err := withDescription(buf.Bytes(), text)
	require.NoError(t, err)
	return out
}

func TestReadDescription(t *testing.T) {
	testCases := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{name: "metadata", text: "# BEGIN DMI\nversion = 4.0\n# END DMI\n"},
		{name: "at limit", text: strings.Repeat("a", maxDescription)},
		{name: "over limit", text: strings.Repeat("a", maxDescription+1), wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			text, ok, err := readDescription(encodedWithDescription(t, tc.text))
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "exceeds")
				return
			}
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, len(tc.text), len(text))
		})
	}
}
