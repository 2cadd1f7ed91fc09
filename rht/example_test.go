package rht_test

import (
	"fmt"
	"unsafe"

	"github.com/longpractice/Relativistic-Hash-Table/rht"
)

type widget struct {
	hdr rht.NodeHeader
	id  int
}

var widgetHdrOffset = unsafe.Offsetof(widget{}.hdr)

func widgetEq(a, b *rht.NodeHeader) bool {
	return rht.EntryOf[widget](a, widgetHdrOffset).id == rht.EntryOf[widget](b, widgetHdrOffset).id
}

func hashWidgetID(id int) uint64 {
	return uint64(id)*2654435761 + 1
}

// Example demonstrates inserting an entry and looking it up from inside a
// bracketed reader critical section.
func Example() {
	tbl := rht.NewDefault()

	w := &widget{id: 42}
	tbl.TryInsert(&w.hdr, hashWidgetID(42), widgetEq)

	sess := tbl.EnterRead(nil)
	n := tbl.Find(hashWidgetID(42), func(n *rht.NodeHeader) bool {
		return rht.EntryOf[widget](n, widgetHdrOffset).id == 42
	})
	sess.Exit()

	found := rht.EntryOf[widget](n, widgetHdrOffset)
	fmt.Println(found.id)

	// Output:
	// 42
}

// Example_registeredReader demonstrates a long-lived reader goroutine
// registering once and reusing its handle across many critical sections.
func Example_registeredReader() {
	tbl := rht.NewDefault()
	w := &widget{id: 7}
	tbl.InsertNoDup(&w.hdr, hashWidgetID(7))

	h, _ := tbl.TryRegisterReader()

	tok := tbl.ReaderEnter(h)
	n := tbl.Find(hashWidgetID(7), func(n *rht.NodeHeader) bool {
		return rht.EntryOf[widget](n, widgetHdrOffset).id == 7
	})
	tbl.ReaderExit(h, tok)

	fmt.Println(rht.EntryOf[widget](n, widgetHdrOffset).id)

	// Output:
	// 7
}
