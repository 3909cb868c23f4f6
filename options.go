package stratum

import (
	"io"
	"log"
	"os"
)

// Configuration constants for the storage engine.
const (
	// DefaultBlockSize is the target size, in bytes, of one SST block's
	// uncompressed entries before the block is compressed and a new one is
	// opened.
	DefaultBlockSize = 64 * 1024

	// DefaultSSTableTargetSize is the target size, in bytes, of one SST
	// object before the builder opens a new one at a user-key boundary.
	DefaultSSTableTargetSize = 4 * 1024 * 1024

	// DefaultCompactorBuffer is the depth of the best-effort compactor
	// notification channel.
	DefaultCompactorBuffer = 16

	// DefaultBlockCacheBytes sizes the uploader's block cache when none is
	// supplied explicitly.
	DefaultBlockCacheBytes = 64 * 1024 * 1024
)

// Options configures a MemtableManager / engine instance.
type Options struct {
	// RemoteDir is the object-store key prefix under which SSTs are
	// published.
	RemoteDir string

	// TargetTableSize is the size, in uncompressed entry bytes, at which an
	// SST object is cut at the next user-key boundary. Zero means
	// DefaultSSTableTargetSize.
	TargetTableSize int

	// BlockSize caps the uncompressed size of one SST block. Zero means
	// DefaultBlockSize.
	BlockSize int

	// CompactorBuffer sizes the compactor notification channel. Zero means
	// DefaultCompactorBuffer.
	CompactorBuffer int

	// Logger receives uploader diagnostics. Nil means a logger writing to
	// os.Stderr.
	Logger *log.Logger
}

// DefaultOptions returns an Options with every field at its documented
// default, rooted at remoteDir.
func DefaultOptions(remoteDir string) Options {
	return Options{
		RemoteDir:       remoteDir,
		TargetTableSize: DefaultSSTableTargetSize,
		BlockSize:       DefaultBlockSize,
		CompactorBuffer: DefaultCompactorBuffer,
	}
}

func (o Options) tableTargetSize() int {
	if o.TargetTableSize <= 0 {
		return DefaultSSTableTargetSize
	}
	return o.TargetTableSize
}

func (o Options) tableBlockSize() int {
	if o.BlockSize <= 0 {
		return DefaultBlockSize
	}
	return o.BlockSize
}

func (o Options) compactorBuffer() int {
	if o.CompactorBuffer <= 0 {
		return DefaultCompactorBuffer
	}
	return o.CompactorBuffer
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.New(os.Stderr, "stratum: ", log.LstdFlags)
}

// discardLogger is handy for tests that don't want uploader diagnostics on
// stderr.
func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
