// Package record defines the record locator stored by the index and a
// record store that hands locators out.
//
// The index never looks inside a record; it keeps the {page, slot} pair the
// store produced when the record was appended and returns it on lookup.
package record

import (
	"encoding/binary"
	"fmt"
)

// LocatorSize is the encoded size of a Locator.
const LocatorSize = 8

// Locator addresses one record in the record store.
type Locator struct {
	PageID int32
	SlotID int32
}

func (l Locator) String() string {
	return fmt.Sprintf("{%d,%d}", l.PageID, l.SlotID)
}

// Put encodes l into the first LocatorSize bytes of b.
func (l Locator) Put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], uint32(l.PageID))
	binary.LittleEndian.PutUint32(b[4:8], uint32(l.SlotID))
}

// ReadLocator decodes a Locator from the first LocatorSize bytes of b.
func ReadLocator(b []byte) Locator {
	return Locator{
		PageID: int32(binary.LittleEndian.Uint32(b[0:4])),
		SlotID: int32(binary.LittleEndian.Uint32(b[4:8])),
	}
}
