package codec_test

import (
	"testing"

	"github.com/AndrewDonelson/eav/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID    int64  `json:"id" msgpack:"id" yaml:"id"`
	Value string `json:"value" msgpack:"value" yaml:"value"`
}

func TestCodecs_RoundTripStruct(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON{}, codec.MsgPack{}, codec.YAML{}} {
		t.Run(c.Name(), func(t *testing.T) {
			orig := row{ID: 7, Value: "red"}
			b, err := c.Marshal(orig)
			require.NoError(t, err)

			var got row
			require.NoError(t, c.Unmarshal(b, &got))
			assert.Equal(t, orig, got)
		})
	}
}

func TestJSON_NoHTMLEscapeNoNewline(t *testing.T) {
	b, err := codec.JSON{}.Marshal(map[string]any{"expr": "a<b && c>d"})
	require.NoError(t, err)
	assert.Equal(t, `{"expr":"a<b && c>d"}`, string(b))
}

func TestMsgPack_Deterministic(t *testing.T) {
	c := codec.MsgPack{}
	v := map[string]any{"z": 1, "a": 2, "m": 3, "q": 4, "b": 5}
	first, err := c.Marshal(v)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := c.Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestYAML_NestedAny(t *testing.T) {
	c := codec.YAML{}
	orig := map[string]any{
		"dims": []any{1, 2, 3},
		"meta": map[string]any{"ok": true, "label": "x"},
	}
	b, err := c.Marshal(orig)
	require.NoError(t, err)

	var got any
	require.NoError(t, c.Unmarshal(b, &got))
	assert.Equal(t, orig, got)
}

func TestByName(t *testing.T) {
	assert.Equal(t, codec.YAML{}, codec.ByName(""))
	assert.Equal(t, codec.YAML{}, codec.ByName("yaml"))
	assert.Equal(t, codec.JSON{}, codec.ByName("json"))
	assert.Equal(t, codec.MsgPack{}, codec.ByName("msgpack"))
	assert.Nil(t, codec.ByName("gob"))
}
