package abi

import "strconv"

// Handle is an opaque reference number for one foreign-owned object.
// The zero handle is never assigned.
type Handle int32

const NullHandle Handle = 0

func (h Handle) Valid() bool {
	return h > 0
}

func (h Handle) String() string {
	return "refnum:" + strconv.FormatInt(int64(h), 10)
}
