package coalesce

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	failNext error
	segments []string
}

func (c *collector) WriteSegment(_ context.Context, seg string) error {
	if c.failNext != nil {
		err := c.failNext
		c.failNext = nil
		return err
	}
	c.segments = append(c.segments, seg)
	return nil
}

func TestBuffer_HoldsShortText(t *testing.T) {
	c := &collector{}
	b := New(c, WithMinChars(20))
	b.Append("H")
	require.NoError(t, b.Drain(context.Background(), false))
	assert.Empty(t, c.segments)
	assert.Equal(t, 1, b.Pending())

	require.NoError(t, b.Drain(context.Background(), true))
	assert.Equal(t, []string{"H"}, c.segments)
	assert.Zero(t, b.Pending())
}

func TestBuffer_CutsAtBreaks(t *testing.T) {
	c := &collector{}
	b := New(c, WithMinChars(20))
	ctx := context.Background()

	// First segment only needs a quarter of the minimum.
	b.Append("Sure thing. Let me look")
	require.NoError(t, b.Drain(ctx, false))
	assert.Equal(t, []string{"Sure thing. "}, c.segments)

	b.Append(" at the build output now.\n\nIt fails")
	require.NoError(t, b.Drain(ctx, false))
	assert.Equal(t, []string{"Sure thing. ", "Let me look at the build output now.\n\n"}, c.segments)

	require.NoError(t, b.Drain(ctx, true))
	assert.Equal(t, "It fails", c.segments[2])

	segments, runes := b.Stats()
	assert.Equal(t, 3, segments)
	assert.Equal(t, len("Sure thing. Let me look at the build output now.\n\nIt fails"), runes)
}

func TestBuffer_CutsLongRunsWithoutBreaks(t *testing.T) {
	c := &collector{}
	b := New(c, WithMinChars(4), WithMaxChars(10))
	b.Append(strings.Repeat("x", 25))
	require.NoError(t, b.Drain(context.Background(), false))
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx"}, c.segments)
	assert.Equal(t, 5, b.Pending())
}

func TestBuffer_RequeuesOnFailure(t *testing.T) {
	errDown := errors.New("socket closed")
	c := &collector{failNext: errDown}
	b := New(c)
	b.Append("hello")

	err := b.Drain(context.Background(), true)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, 5, b.Pending())

	b.Append(" world")
	require.NoError(t, b.Drain(context.Background(), true))
	assert.Equal(t, []string{"hello world"}, c.segments)
}

func TestSinkFunc(t *testing.T) {
	var got []string
	b := New(SinkFunc(func(_ context.Context, s string) error {
		got = append(got, s)
		return nil
	}))
	b.Append("done")
	require.NoError(t, b.Drain(context.Background(), true))
	assert.Equal(t, []string{"done"}, got)
}
