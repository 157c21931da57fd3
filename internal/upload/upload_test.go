package upload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mfortier/go-groupchat/internal/testutil"
	"github.com/mfortier/go-groupchat/internal/types"
	"github.com/stretchr/testify/assert"
)

func newTestGateway(t *testing.T) *Gateway {
	g, err := NewGateway(t.TempDir(), "/media", testutil.TestLogger(t))
	if err != nil {
		t.Fatalf("failed to create gateway: %v", err)
	}
	return g
}

func TestClassifyMime(t *testing.T) {
	tcases := []struct {
		name         string
		declaredMime string
		expectedKind types.MessageKind
		expectErr    bool
	}{
		{
			name:         "png is an image",
			declaredMime: "image/png",
			expectedKind: types.MessageKindImage,
		},
		{
			name:         "webp is an image",
			declaredMime: "image/webp",
			expectedKind: types.MessageKindImage,
		},
		{
			name:         "mp4 is a video",
			declaredMime: "video/mp4",
			expectedKind: types.MessageKindVideo,
		},
		{
			name:         "pdf is unsupported",
			declaredMime: "application/pdf",
			expectErr:    true,
		},
		{
			name:         "plain text is unsupported",
			declaredMime: "text/plain",
			expectErr:    true,
		},
		{
			name:         "empty type is unsupported",
			declaredMime: "",
			expectErr:    true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			kind, err := classifyMime(tc.declaredMime)
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrUnsupportedType, "expected unsupported type error")
				return
			}
			assert.NoError(t, err, "expected type to be accepted")
			assert.Equal(t, tc.expectedKind, kind, "expected kind to match MIME prefix")
		})
	}
}

func TestStore(t *testing.T) {
	t.Run("stores an image and returns its reference", func(t *testing.T) {
		g := newTestGateway(t)

		up, err := g.Store(strings.NewReader("fake png bytes"), "image/png", "cat.PNG")
		assert.NoError(t, err, "expected upload to succeed")
		assert.Equal(t, types.MessageKindImage, up.Kind, "expected image kind")
		assert.Equal(t, "cat.PNG", up.OriginalFilename, "expected original filename to be preserved")
		assert.True(t, strings.HasPrefix(up.Reference, "/media/"), "expected reference under the url prefix")
		assert.True(t, strings.HasSuffix(up.Reference, ".png"), "expected a lowercased extension")

		// the object exists on disk under the generated name
		data, err := os.ReadFile(filepath.Join(g.Dir(), filepath.Base(up.Reference)))
		assert.NoError(t, err, "expected object to exist on disk")
		assert.Equal(t, "fake png bytes", string(data), "expected object contents to match")
	})

	t.Run("stores a video", func(t *testing.T) {
		g := newTestGateway(t)

		up, err := g.Store(strings.NewReader("fake mp4 bytes"), "video/mp4", "clip.mp4")
		assert.NoError(t, err, "expected upload to succeed")
		assert.Equal(t, types.MessageKindVideo, up.Kind, "expected video kind")
	})

	t.Run("generated names never collide on identical filenames", func(t *testing.T) {
		g := newTestGateway(t)

		first, err := g.Store(strings.NewReader("one"), "image/png", "cat.png")
		assert.NoError(t, err)
		second, err := g.Store(strings.NewReader("two"), "image/png", "cat.png")
		assert.NoError(t, err)
		assert.NotEqual(t, first.Reference, second.Reference, "expected distinct object names")
	})

	t.Run("rejects an unsupported type before writing", func(t *testing.T) {
		g := newTestGateway(t)

		_, err := g.Store(strings.NewReader("%PDF-1.4"), "application/pdf", "doc.pdf")
		assert.ErrorIs(t, err, ErrUnsupportedType, "expected unsupported type error")

		entries, readErr := os.ReadDir(g.Dir())
		assert.NoError(t, readErr)
		assert.Empty(t, entries, "expected nothing to be written")
	})

	t.Run("rejects an object over the size ceiling and removes it", func(t *testing.T) {
		g := newTestGateway(t)
		g.maxSize = 16

		_, err := g.Store(strings.NewReader(strings.Repeat("x", 17)), "image/png", "big.png")
		assert.ErrorIs(t, err, ErrTooLarge, "expected size ceiling error")

		entries, readErr := os.ReadDir(g.Dir())
		assert.NoError(t, readErr)
		assert.Empty(t, entries, "expected partial object to be removed")
	})

	t.Run("accepts an object exactly at the ceiling", func(t *testing.T) {
		g := newTestGateway(t)
		g.maxSize = 16

		up, err := g.Store(strings.NewReader(strings.Repeat("x", 16)), "image/png", "edge.png")
		assert.NoError(t, err, "expected object at the ceiling to be accepted")

		data, err := os.ReadFile(filepath.Join(g.Dir(), filepath.Base(up.Reference)))
		assert.NoError(t, err)
		assert.Len(t, data, 16, "expected the full object on disk")
	})
}
