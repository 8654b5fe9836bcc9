package log

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForComponent(t *testing.T) {
	t.Cleanup(func() { To(nil) })

	t.Run("Discards before To", func(t *testing.T) {
		To(nil)

		sut := ForComponent("test")
		require.False(t, sut.Enabled(t.Context(), slog.LevelError))
		sut.Error("nobody is listening")
	})

	t.Run("Writes after To", func(t *testing.T) {
		sut := ForComponent("test").With(Entity("motion"))

		var b bytes.Buffer
		To(slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelDebug}))

		sut.With(Topic("dev1/motion/state"), Error(errors.New("boom"))).Warn("Publish failed")

		out := b.String()
		assert.Contains(t, out, "component=test")
		assert.Contains(t, out, "entity=motion")
		assert.Contains(t, out, "topic=dev1/motion/state")
		assert.Contains(t, out, "error=boom")
		assert.Contains(t, out, `msg="Publish failed"`)
	})

	t.Run("Groups keep attribute order", func(t *testing.T) {
		var b bytes.Buffer
		To(slog.NewTextHandler(&b, nil))

		ForComponent("outer").WithGroup("g").Info("hello", slog.String("k", "v"))

		out := b.String()
		assert.Contains(t, out, "component=outer")
		assert.Contains(t, out, "g.k=v")
	})
}
