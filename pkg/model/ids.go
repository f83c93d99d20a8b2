package model

import "strconv"

// ElementID identifies an element inside one document.
type ElementID int64

// InvalidElementID is the zero-like sentinel used by the source models
// for "no element".
const InvalidElementID ElementID = -1

// IsValid reports whether id refers to an element.
func (id ElementID) IsValid() bool {
	return id >= 0
}

func (id ElementID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ContainerID identifies which model an element lives in. Elements of the
// host model carry LocalContainer; elements reached through a link carry
// the element id of the link instance in the host model.
type ContainerID int64

// LocalContainer marks an element that lives in the host model itself.
const LocalContainer ContainerID = -1

// IsLocal reports whether c is the host model.
func (c ContainerID) IsLocal() bool {
	return c == LocalContainer
}

func (c ContainerID) String() string {
	if c.IsLocal() {
		return "local"
	}
	return "link:" + strconv.FormatInt(int64(c), 10)
}

// hashID folds a 64-bit id into a hash the way the host platform hashes
// 64-bit integers: low word XOR high word.
func hashID(v int64) uint64 {
	u := uint64(v)
	return uint64(uint32(u) ^ uint32(u>>32))
}
