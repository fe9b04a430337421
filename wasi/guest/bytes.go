//go:build wasip1

package guest

import (
	"unsafe"
)

// Buffers allocated for the host, keyed by handle. The host writes into a
// buffer and passes its handle back to the guest.
var (
	byteHandles    = map[uint32][]byte{}
	nextByteHandle uint32 = 1
)

// AllocBytes returns the handle in the high 32 bits and the buffer address in
// the low 32 bits.
//
//go:wasmexport alloc_bytes
func AllocBytes(size uint32) uint64 {
	bytes := make([]byte, max(size, 1))[:size]
	handle := nextByteHandle
	nextByteHandle++
	byteHandles[handle] = bytes
	return uint64(handle)<<32 | uint64(uintptr(unsafe.Pointer(unsafe.SliceData(bytes))))
}

//go:wasmexport free_bytes
func FreeBytes(handle uint32) {
	delete(byteHandles, handle)
}

// TakeBytes returns the buffer for handle and releases it.
func TakeBytes(handle uint32) []byte {
	b := byteHandles[handle]
	delete(byteHandles, handle)
	return b
}
