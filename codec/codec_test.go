package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Time  string    `json:"time"`
	UL12  float64   `json:"UL12"`
	UL12h []float64 `json:"UL12_h,omitempty"`
}

func TestCodecs_Agree(t *testing.T) {
	in := row{Time: "2024-01-01T00:00:00.000Z", UL12: 230.5, UL12h: []float64{1.5, 0.25}}

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			c, err := ByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, c.Name())

			data, err := c.Marshal(in)
			require.NoError(t, err)
			assert.JSONEq(t, `{"time":"2024-01-01T00:00:00.000Z","UL12":230.5,"UL12_h":[1.5,0.25]}`, string(data))

			var out row
			require.NoError(t, c.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestByName(t *testing.T) {
	assert.Equal(t, []string{"go-json", "json"}, Names())

	c, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, Default.Name(), c.Name())

	_, err = ByName("msgpack")
	assert.ErrorContains(t, err, `unknown codec "msgpack"`)
}

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLine(&buf, JSON{}, map[string]int{"frames": 4}))
	require.NoError(t, WriteLine(&buf, GoJSON{}, []string{"UL12"}))
	assert.Equal(t, "{\"frames\":4}\n[\"UL12\"]\n", buf.String())
}
