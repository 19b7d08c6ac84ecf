//go:build cgo

package main

/*
#include "nativebridge.h"
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/patric-chuzhbe/nativebridge/internal/handles"
	"github.com/patric-chuzhbe/nativebridge/internal/logger"
)

// buffers holds NUL-terminated strings and user names; records holds boxed User structs.
// Keeping them apart makes passing a record to native_free_string a detectable violation.
var (
	buffers = handles.NewLedger[uintptr]()
	records = handles.NewLedger[uintptr]()
)

// quarantineSize is how many released blocks are held back from C.free. While a
// block sits in quarantine malloc cannot hand its address out again, so a stale
// release of it is reported as a violation instead of freeing a new allocation.
const quarantineSize = 64

type quarantine struct {
	mu   sync.Mutex
	ring [quarantineSize]unsafe.Pointer
	next int
}

var released quarantine

// put holds p back and frees the block it evicts, if any.
func (q *quarantine) put(p unsafe.Pointer) {
	q.mu.Lock()
	evicted := q.ring[q.next]
	q.ring[q.next] = p
	q.next = (q.next + 1) % quarantineSize
	q.mu.Unlock()

	if evicted != nil {
		C.free(evicted)
	}
}

// ownedBytes copies b into a malloc'd, NUL-terminated buffer tracked by the ledger.
// cgo's C.malloc never returns nil; it aborts the process when memory is exhausted.
func ownedBytes(b []byte) *C.char {
	p := C.malloc(C.size_t(len(b) + 1))
	dst := unsafe.Slice((*byte)(p), len(b)+1)
	copy(dst, b)
	dst[len(b)] = 0
	buffers.Track(uintptr(p))

	return (*C.char)(p)
}

func ownedString(s string) *C.char {
	return ownedBytes([]byte(s))
}

// goString copies a NUL-terminated C string into Go memory.
func goString(p *C.char) string {
	if p == nil {
		return ""
	}
	return C.GoString(p)
}

// borrowedBytes views n bytes at p without copying. The view must not outlive the call.
func borrowedBytes(p unsafe.Pointer, n uintptr) []byte {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

// releaseBuffer frees p if the library owns it. It reports whether p was freed.
func releaseBuffer(p unsafe.Pointer, what string) bool {
	if err := buffers.Forget(uintptr(p)); err != nil {
		violation(what, err)
		return false
	}
	released.put(p)

	return true
}

func newRecord(id int32, name []byte) *C.User {
	rec := (*C.User)(C.malloc(C.size_t(unsafe.Sizeof(C.User{}))))
	*rec = newUser(id, name)
	records.Track(uintptr(unsafe.Pointer(rec)))

	return rec
}

func newUser(id int32, name []byte) C.User {
	return C.User{
		id:       C.int32_t(id),
		name:     ownedBytes(name),
		name_len: C.uintptr_t(len(name)),
	}
}

// releaseUserName frees the name buffer of u and clears it.
func releaseUserName(u *C.User) {
	if u.name == nil {
		return
	}
	if !releaseBuffer(unsafe.Pointer(u.name), "user name") {
		return
	}
	u.name = nil
	u.name_len = 0
}

func releaseRecord(u *C.User) {
	if err := records.Forget(uintptr(unsafe.Pointer(u))); err != nil {
		violation("boxed user", err)
		return
	}
	releaseUserName(u)
	released.put(unsafe.Pointer(u))
}

func outstanding() int {
	return buffers.Len() + records.Len()
}

// violation handles a release of memory the library does not own: a double release,
// a foreign pointer or a use after release. Nothing is freed. In strict mode the
// process is aborted so that harnesses surface the bug at its origin.
func violation(what string, err error) {
	logger.Log.Errorln("ownership violation", "what", what, "error", err)
	if lib().strict {
		panic(fmt.Sprintf("nativebridge: ownership violation on %s: %v", what, err))
	}
}
