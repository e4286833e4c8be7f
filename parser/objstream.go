package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pboffice01/PDFGeneral/filters"
	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/recovery"
	"github.com/pboffice01/PDFGeneral/scanner"
)

var errFirstOutOfRange = errors.New("object stream /First exceeds length")

// decodeObjectStream parses every object held by an /ObjStm stream. The
// header before /First lists object number and relative offset pairs.
func decodeObjectStream(ctx context.Context, p *filters.Pipeline, st *raw.StreamObj, cfg scanner.Config, rec recovery.Strategy) (map[int]raw.Object, error) {
	data := st.RawData()
	if names, params := filters.StreamFilters(st.Dict); len(names) > 0 {
		decoded, err := p.Decode(ctx, data, names, params)
		if err != nil {
			return nil, err
		}
		data = decoded
	}
	first := dictInt(st.Dict, "First")
	if first < 0 || first > int64(len(data)) {
		return nil, errFirstOutOfRange
	}
	header, body := data[:first], data[first:]

	offsets, err := objectStreamHeader(header, int(dictInt(st.Dict, "N")), cfg)
	if err != nil {
		return nil, err
	}
	objs := make(map[int]raw.Object, len(offsets))
	for _, e := range offsets {
		if e.offset < 0 || e.offset > int64(len(body)) {
			return nil, fmt.Errorf("object %d offset %d outside object stream", e.num, e.offset)
		}
		s := scanner.New(bytes.NewReader(body[e.offset:]), cfg)
		obj, err := raw.NewObjectReader(s, rec).ReadObject()
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", e.num, err)
		}
		objs[e.num] = obj
	}
	return objs, nil
}

type objectStreamEntry struct {
	num    int
	offset int64
}

// objectStreamHeader reads up to n pairs of integers. Other tokens are
// skipped and a short header yields the pairs it has.
func objectStreamHeader(header []byte, n int, cfg scanner.Config) ([]objectStreamEntry, error) {
	s := scanner.New(bytes.NewReader(header), cfg)
	var ints []int64
	for len(ints) < 2*n {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenNumber && tok.IsInt {
			ints = append(ints, tok.Int)
		}
	}
	entries := make([]objectStreamEntry, 0, len(ints)/2)
	for i := 0; i+1 < len(ints); i += 2 {
		entries = append(entries, objectStreamEntry{num: int(ints[i]), offset: ints[i+1]})
	}
	return entries, nil
}

func dictInt(d *raw.DictObj, key string) int64 {
	v, _ := d.Lookup(key)
	if n, ok := v.(raw.NumberObj); ok {
		return n.Int()
	}
	return 0
}
