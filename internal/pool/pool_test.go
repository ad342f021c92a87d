package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyBuffer(t *testing.T) {
	bufPtr := GetCopyBuffer()
	require.NotNil(t, bufPtr)
	assert.Equal(t, CopyBufferSize, len(*bufPtr))

	// Shrunk slices are restored to full length on the next Get
	*bufPtr = (*bufPtr)[:10]
	PutCopyBuffer(bufPtr)

	again := GetCopyBuffer()
	assert.Equal(t, CopyBufferSize, len(*again))
	PutCopyBuffer(again)
}

func TestPutCopyBuffer_IgnoresForeignSlices(t *testing.T) {
	foreign := make([]byte, 16)
	assert.NotPanics(t, func() {
		PutCopyBuffer(&foreign)
		PutCopyBuffer(nil)
	})
}

func TestBuffer(t *testing.T) {
	buf := GetBuffer()
	require.NotNil(t, buf)
	assert.Equal(t, 0, buf.Len())

	buf.WriteString("modpack")
	PutBuffer(buf)

	again := GetBuffer()
	assert.Equal(t, 0, again.Len())
	PutBuffer(again)
}

func TestPutBuffer_DropsOversized(t *testing.T) {
	big := bytes.NewBuffer(make([]byte, 0, maxPooledBuffer+1))
	assert.NotPanics(t, func() {
		PutBuffer(big)
		PutBuffer(nil)
	})
}
