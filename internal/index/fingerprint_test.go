package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprinterKnownDigests(t *testing.T) {
	cases := []struct {
		name string
		want Fingerprint
	}{
		{"blake3", "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
		{"sha256", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"md5", "d41d8cd98f00b204e9800998ecf8427e"},
	}
	for _, tc := range cases {
		fp, err := NewFingerprinter(tc.name)
		require.NoError(t, err)
		assert.Equal(t, tc.want, fp.Sum([]byte{}), tc.name)
		assert.Equal(t, Algorithm(tc.name), fp.Algorithm())
	}
}

func TestFingerprinterDefaults(t *testing.T) {
	var zero Fingerprinter
	fp, err := NewFingerprinter("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAlgorithm, zero.Algorithm())
	assert.Equal(t, zero.Sum([]byte("rack\n")), fp.Sum([]byte("rack\n")))

	_, err = NewFingerprinter("crc32")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestEvaluate(t *testing.T) {
	art := Artifact{Body: []byte("rack\n"), Fingerprint: "abc"}

	res := Evaluate("abc", art)
	assert.True(t, res.NotModified)
	assert.Empty(t, res.Artifact.Body)
	assert.Equal(t, Fingerprint("abc"), res.Artifact.Fingerprint)

	for _, client := range []Fingerprint{"", "abd", `"abc"`} {
		res := Evaluate(client, art)
		assert.False(t, res.NotModified, client)
		assert.Equal(t, art, res.Artifact, client)
	}
}
