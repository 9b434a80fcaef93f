package serializer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hapcore/hapd/internal/hap/characteristic"
)

type fakeSession struct{}

func (fakeSession) IsAdmin() bool { return false }

func sampleDatabase() *characteristic.Database {
	return &characteristic.Database{
		Accessories: []*characteristic.Accessory{
			{
				AID: 1,
				Services: []*characteristic.Service{
					{
						IID:      1,
						TypeUUID: "0000003E-0000-1000-8000-0026BB765291",
						Characteristics: []*characteristic.Characteristic{
							{
								IID:      9,
								TypeUUID: "00000025-0000-1000-8000-0026BB765291",
								Format:   characteristic.FormatBool,
								Properties: characteristic.Properties{
									Readable: true,
								},
								OnRead: func(ctx context.Context, s characteristic.SessionContext) (any, error) {
									return false, nil
								},
							},
						},
					},
				},
			},
		},
	}
}

func drainAll(t *testing.T, ctx *Context) []byte {
	t.Helper()
	var all []byte
	for {
		chunk, done, err := ctx.Next(1, 4096)
		require.NoError(t, err)
		all = append(all, chunk...)
		if done {
			break
		}
	}
	return all
}

func TestSerializeProducesValidJSON(t *testing.T) {
	ctx := NewContext(sampleDatabase(), fakeSession{})
	out := drainAll(t, ctx)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(out, &parsed))

	accessories, ok := parsed["accessories"].([]any)
	require.True(t, ok)
	require.Len(t, accessories, 1)
}

func TestSerializeIsResumableInSmallChunks(t *testing.T) {
	ctxSmall := NewContext(sampleDatabase(), fakeSession{})
	var smallChunked []byte
	for {
		chunk, done, err := ctxSmall.Next(1, 8)
		require.NoError(t, err)
		smallChunked = append(smallChunked, chunk...)
		if done {
			break
		}
	}

	ctxBig := NewContext(sampleDatabase(), fakeSession{})
	bigChunked := drainAll(t, ctxBig)

	require.Equal(t, string(bigChunked), string(smallChunked))
}

func TestFrameChunk(t *testing.T) {
	framed := FrameChunk([]byte("abc"), false)
	require.Equal(t, "3\r\nabc\r\n", string(framed))

	final := FrameChunk(nil, true)
	require.Equal(t, "0\r\n\r\n", string(final))
}
