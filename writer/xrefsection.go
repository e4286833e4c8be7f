package writer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"maps"
	"slices"

	"github.com/pboffice01/PDFGeneral/ir/raw"
)

type xrefEntry struct {
	offset int64
	gen    int
}

// subsections splits the object numbers of entries into runs of consecutive
// numbers. withHead adds object 0, the head of the free list.
func subsections(entries map[int]xrefEntry, withHead bool) [][]int {
	nums := slices.Sorted(maps.Keys(entries))
	if withHead {
		nums = append([]int{0}, nums...)
	}
	var runs [][]int
	for len(nums) > 0 {
		n := 1
		for n < len(nums) && nums[n] == nums[n-1]+1 {
			n++
		}
		runs = append(runs, nums[:n])
		nums = nums[n:]
	}
	return runs
}

// writeXRefTable writes a classic cross-reference section. Every entry is
// exactly 20 bytes including its CRLF.
func writeXRefTable(buf *bytes.Buffer, entries map[int]xrefEntry, withHead bool) {
	buf.WriteString("xref\n")
	for _, run := range subsections(entries, withHead) {
		fmt.Fprintf(buf, "%d %d\n", run[0], len(run))
		for _, n := range run {
			if n == 0 {
				buf.WriteString("0000000000 65535 f\r\n")
				continue
			}
			fmt.Fprintf(buf, "%010d %05d n\r\n", entries[n].offset, entries[n].gen)
		}
	}
}

// xrefStreamIndexAndEntries returns the /Index array and the packed rows of
// a cross-reference stream with /W [1 4 2].
func xrefStreamIndexAndEntries(entries map[int]xrefEntry, withHead bool) (*raw.ArrayObj, []byte) {
	index := raw.NewArray()
	var data []byte
	for _, run := range subsections(entries, withHead) {
		index.Append(raw.NumberInt(int64(run[0])))
		index.Append(raw.NumberInt(int64(len(run))))
		for _, n := range run {
			kind, e := byte(1), entries[n]
			if n == 0 {
				kind, e = 0, xrefEntry{gen: 65535}
			}
			data = append(data, kind)
			data = binary.BigEndian.AppendUint32(data, uint32(e.offset))
			data = binary.BigEndian.AppendUint16(data, uint16(e.gen))
		}
	}
	return index, data
}
