package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryRoundTrip(t *testing.T) {
	c := Binary{}

	t.Run("String", func(t *testing.T) {
		data, err := c.Encode("hello world")
		require.NoError(t, err)
		assert.Equal(t, byte(KindString), data[0])

		var out string
		require.NoError(t, c.Decode(data, &out))
		assert.Equal(t, "hello world", out)
	})

	t.Run("Int", func(t *testing.T) {
		data, err := c.Encode(int64(-42))
		require.NoError(t, err)

		var out int64
		require.NoError(t, c.Decode(data, &out))
		assert.Equal(t, int64(-42), out)
	})

	t.Run("IntPromotion", func(t *testing.T) {
		// Plain ints encode as KindInt and come back as int64
		data, err := c.Encode(7)
		require.NoError(t, err)

		var out int64
		require.NoError(t, c.Decode(data, &out))
		assert.Equal(t, int64(7), out)
	})

	t.Run("Float", func(t *testing.T) {
		data, err := c.Encode(3.14159)
		require.NoError(t, err)

		var out float64
		require.NoError(t, c.Decode(data, &out))
		assert.Equal(t, 3.14159, out)
	})

	t.Run("Bool", func(t *testing.T) {
		for _, b := range []bool{true, false} {
			data, err := c.Encode(b)
			require.NoError(t, err)

			var out bool
			require.NoError(t, c.Decode(data, &out))
			assert.Equal(t, b, out)
		}
	})

	t.Run("Time", func(t *testing.T) {
		when := time.Date(2024, 6, 15, 10, 30, 0, 123456789, time.UTC)
		data, err := c.Encode(when)
		require.NoError(t, err)

		var out time.Time
		require.NoError(t, c.Decode(data, &out))
		assert.True(t, when.Equal(out), "want %v, got %v", when, out)
	})

	t.Run("Bytes", func(t *testing.T) {
		blob := []byte{0x00, 0x01, 0xFF, 0xFE}
		data, err := c.Encode(blob)
		require.NoError(t, err)

		var out []byte
		require.NoError(t, c.Decode(data, &out))
		assert.Equal(t, blob, out)
	})
}

func TestBinaryDecodeAny(t *testing.T) {
	c := Binary{}

	cases := []struct {
		name  string
		value interface{}
	}{
		{"String", "abc"},
		{"Int", int64(99)},
		{"Float", 2.5},
		{"Bool", true},
		{"Bytes", []byte{1, 2, 3}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := c.Encode(tc.value)
			require.NoError(t, err)

			var out interface{}
			require.NoError(t, c.Decode(data, &out))
			assert.Equal(t, tc.value, out)
		})
	}

	t.Run("Time", func(t *testing.T) {
		when := time.Unix(1718000000, 500)
		data, err := c.Encode(when)
		require.NoError(t, err)

		var out interface{}
		require.NoError(t, c.Decode(data, &out))
		got, ok := out.(time.Time)
		require.True(t, ok)
		assert.True(t, when.Equal(got))
	})
}

func TestBinaryErrors(t *testing.T) {
	c := Binary{}

	t.Run("UnsupportedType", func(t *testing.T) {
		_, err := c.Encode(struct{ X int }{1})
		assert.Error(t, err)
	})

	t.Run("KindMismatch", func(t *testing.T) {
		data, err := c.Encode("text")
		require.NoError(t, err)

		var out int64
		assert.Error(t, c.Decode(data, &out))
	})

	t.Run("EmptyInput", func(t *testing.T) {
		var out string
		assert.Error(t, c.Decode(nil, &out))
	})

	t.Run("TruncatedPayload", func(t *testing.T) {
		var out int64
		assert.Error(t, c.Decode([]byte{byte(KindInt), 1, 2}, &out))
	})

	t.Run("UnknownKind", func(t *testing.T) {
		var out interface{}
		assert.Error(t, c.Decode([]byte{0x7F, 0, 0}, &out))
	})

	t.Run("BadTarget", func(t *testing.T) {
		data, err := c.Encode(int64(1))
		require.NoError(t, err)

		var out uint32
		assert.Error(t, c.Decode(data, &out))
	})
}

func TestJSONRoundTrip(t *testing.T) {
	c := JSON{}

	type payload struct {
		Name  string  `json:"name"`
		Count int64   `json:"count"`
		Score float64 `json:"score"`
	}

	in := payload{Name: "widget", Count: 12, Score: 0.5}
	data, err := c.Encode(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, c.Decode(data, &out))
	assert.Equal(t, in, out)
}
