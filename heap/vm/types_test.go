package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_Address(t *testing.T) {
	f := FrameContaining(0x12_3456)
	assert.Equal(t, Frame(0x123), f)
	assert.Equal(t, uint64(0x12_3000), f.Address())
	assert.True(t, f.Valid())
	assert.False(t, InvalidFrame.Valid())
	assert.Equal(t, "frame(0x123000)", f.String())
}

func TestPageRange(t *testing.T) {
	tests := []struct {
		name        string
		start, last uintptr
		want        []Page
	}{
		{"single page", 0x1000, 0x1000, []Page{1}},
		{"inclusive last byte", 0x1000, 0x2fff, []Page{1, 2}},
		{"unaligned start", 0x1fff, 0x2000, []Page{1, 2}},
		{"last before start", 0x3000, 0x1000, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PageRange(tt.start, tt.last))
		})
	}
}

func TestPageRange_HeapWindow(t *testing.T) {
	const start, size = 0x_4444_4444_0000, 100 * 1024
	pages := PageRange(start, start+size-1)
	require.Len(t, pages, 25)
	assert.Equal(t, uintptr(start), pages[0].Address())
	assert.Equal(t, uintptr(start+size-0x1000), pages[24].Address())
}

func TestFlags_String(t *testing.T) {
	assert.Equal(t, "P|W", (FlagPresent | FlagWritable).String())
	assert.Equal(t, "P|NX", (FlagPresent | FlagNoExecute).String())
	assert.Equal(t, "-", Flags(0).String())
	assert.True(t, (FlagPresent | FlagWritable).Has(FlagPresent))
	assert.False(t, FlagPresent.Has(FlagPresent|FlagWritable))
}

type countingCache struct{ pages []Page }

func (c *countingCache) Invalidate(p Page) { c.pages = append(c.pages, p) }

func TestFlush(t *testing.T) {
	c := &countingCache{}
	f := NewFlush(c, 7)
	assert.Equal(t, Page(7), f.Page())

	f.Ignore()
	assert.Empty(t, c.pages)

	f.Flush()
	assert.Equal(t, []Page{7}, c.pages)

	// A zero Flush has nothing to invalidate.
	Flush{}.Flush()
}
