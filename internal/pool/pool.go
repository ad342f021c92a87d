// Package pool provides reusable buffers for hashing, compression and part uploads.
//
// Publishing a modpack hashes and possibly compresses every file, often with
// many workers at once; the pools keep those steps from allocating a fresh
// buffer per file.
package pool

import (
	"bytes"
	"sync"
)

const (
	// CopyBufferSize is the size of buffers handed out by GetCopyBuffer (64KB).
	CopyBufferSize = 64 * 1024

	// maxPooledBuffer caps the capacity of bytes.Buffers returned to the pool (8MB).
	maxPooledBuffer = 8 * 1024 * 1024
)

var (
	copyBuffers = sync.Pool{
		New: func() any {
			buf := make([]byte, CopyBufferSize)
			return &buf
		},
	}

	byteBuffers = sync.Pool{
		New: func() any {
			return new(bytes.Buffer)
		},
	}
)

// GetCopyBuffer returns a CopyBufferSize scratch slice for io.CopyBuffer.
// The caller must return it with PutCopyBuffer.
func GetCopyBuffer() *[]byte {
	bufPtr := copyBuffers.Get().(*[]byte)
	*bufPtr = (*bufPtr)[:CopyBufferSize]
	return bufPtr
}

// PutCopyBuffer returns a scratch slice to the pool.
func PutCopyBuffer(bufPtr *[]byte) {
	if bufPtr == nil || cap(*bufPtr) != CopyBufferSize {
		return
	}
	copyBuffers.Put(bufPtr)
}

// GetBuffer returns an empty bytes.Buffer.
// The caller must return it with PutBuffer once its bytes are no longer referenced.
func GetBuffer() *bytes.Buffer {
	buf := byteBuffers.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a bytes.Buffer to the pool.
// Very large buffers are dropped to avoid pinning memory.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	byteBuffers.Put(buf)
}
