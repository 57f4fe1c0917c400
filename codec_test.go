package keylist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	c := NewJSONCodec()
	records := []Record{
		{},
		{"u1": {"apple", "banana", "orange"}},
		{"u1": {""}, "u2": {"", "x", ""}},
		{"用户": {"日本語", "emoji 🍎", "Ünïcödé"}},
		{"u1": {`"quoted"`, `back\slash`, "line\nbreak", "\u0000nul"}},
	}

	for _, rec := range records {
		blob, err := c.Encode(rec)
		require.NoError(t, err, "Unexpected error on Encode of %v", rec)

		got, err := c.Decode(blob)
		require.NoError(t, err, "Unexpected error on Decode of %s", blob)
		assert.Equal(t, rec, got)
	}
}

func TestJSONCodecEncodeFails(t *testing.T) {
	c := NewJSONCodec()

	_, err := c.Encode(Record{"u1": {"ok", "\xff"}})
	assert.ErrorIs(t, err, ErrEncodingFailed)

	_, err = c.Encode(Record{"\xfe": {"ok"}})
	assert.ErrorIs(t, err, ErrEncodingFailed)
}

func TestJSONCodecDecodeFails(t *testing.T) {
	c := NewJSONCodec()
	blobs := []string{
		"",
		"null",
		"[]",
		`["u1"]`,
		"42",
		`{"u1": "a"}`,
		`{"u1": [1, 2]}`,
		`{"u1": ["a"]`,
		"\x00\x01",
		`{"u1": [null, "a"]}`,
		`{"u1": null}`,
		"{\"u1\": [\"a\xffb\"]}",
		"{\"u\xfe\": [\"a\"]}",
		`{"": ["a"]}`,
	}

	for _, blob := range blobs {
		_, err := c.Decode([]byte(blob))
		assert.ErrorIs(t, err, ErrDecodingFailed, "Expected decode of %q to fail", blob)
	}
}

func TestJSONCodecDecodeEmptyObject(t *testing.T) {
	rec, err := NewJSONCodec().Decode([]byte(" {} "))
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Equal(t, 0, rec.Len())
}
