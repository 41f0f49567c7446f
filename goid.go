package calltrace

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns the current goroutine's ID, parsed from its stack
// header ("goroutine N [running]:"). Go exposes no public API for goroutine
// identity, but the header format has been stable across releases.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)

	header := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(header, ' '); i > 0 {
		header = header[:i]
	}

	id, err := strconv.ParseUint(string(header), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
