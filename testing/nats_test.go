package testing

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATS(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)

	require.NotNil(t, ns)
	require.True(t, nc.IsConnected())
	require.True(t, ns.ReadyForConnections(time.Second))
	require.True(t, ns.JetStreamEnabled())
}

func TestStartEmbeddedNATS_ParallelTests(t *testing.T) {
	t.Parallel()

	for range 5 {
		t.Run("parallel", func(t *testing.T) {
			t.Parallel()

			_, nc := StartEmbeddedNATS(t)
			require.True(t, nc.IsConnected())
		})
	}
}

func TestCreateJetStreamKV_Isolation(t *testing.T) {
	ctx := t.Context()
	_, nc := StartEmbeddedNATS(t)

	kv1 := CreateJetStreamKV(t, nc, "bucket-1")
	kv2 := CreateJetStreamKV(t, nc, "bucket-2")

	_, err := kv1.Put(ctx, "key", []byte("value1"))
	require.NoError(t, err)
	_, err = kv2.Put(ctx, "key", []byte("value2"))
	require.NoError(t, err)

	entry1, err := kv1.Get(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, []byte("value1"), entry1.Value())

	entry2, err := kv2.Get(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, []byte("value2"), entry2.Value())
}

func TestDecodePNG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	img := DecodePNG(t, buf.Bytes())
	require.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, img.NRGBAAt(1, 0))
}

func TestNewTestLogger(t *testing.T) {
	log := NewTestLogger(t)
	require.NotPanics(t, func() {
		log.Info("rank started", "rank", 0)
	})
}
