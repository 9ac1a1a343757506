package bridge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHex(t *testing.T) {
	testCases := []struct {
		args   []string
		expect []byte
	}{
		{args: []string{"F0"}, expect: []byte{0xF0}},
		{args: []string{"f0", "0d"}, expect: []byte{0xF0, 0x0D}},
		{args: []string{"0xEE", "0x0D"}, expect: []byte{0xEE, 0x0D}},
		{args: []string{"55", "4e45", "52"}, expect: []byte("UNER")},
		{args: nil, expect: []byte{}},
	}
	for _, tc := range testCases {
		data, err := ParseHex(tc.args)
		require.NoError(t, err)
		require.Equal(t, tc.expect, data)
	}
	for _, bad := range [][]string{{"F"}, {"zz"}} {
		_, err := ParseHex(bad)
		require.Error(t, err)
	}
}
