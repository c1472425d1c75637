package ingest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

// BIFF8 record ids.
const (
	recFormula    = 0x0006
	recEOF        = 0x000A
	recContinue   = 0x003C
	recBoundSheet = 0x0085
	recMulRK      = 0x00BD
	recSST        = 0x00FC
	recLabelSST   = 0x00FD
	recNumber     = 0x0203
	recLabel      = 0x0204
	recString     = 0x0207
	recRK         = 0x027E
	recBOF        = 0x0809
)

const biff8 = 0x0600

// readXLS reads the first worksheet of a BIFF8 workbook. Numeric cells are
// taken from the stored value, never from the display format, and formula
// cells yield their cached result. Boolean and error cells are left empty.
func readXLS(data []byte) (s *sheet, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, &ParseError{Format: string(FormatXLS), Err: fmt.Errorf("read xls: %v", r)}
		}
	}()

	stream, err := workbookStream(data)
	if err != nil {
		return nil, &ParseError{Format: string(FormatXLS), Err: err}
	}
	wb, err := parseGlobals(stream)
	if err != nil {
		return nil, &ParseError{Format: string(FormatXLS), Err: fmt.Errorf("workbook globals: %w", err)}
	}
	if len(wb.sheets) == 0 {
		return nil, &ParseError{Format: string(FormatXLS), Err: errors.New("workbook has no sheets")}
	}

	first := wb.sheets[0]
	cells, err := parseSheet(stream, first.offset, wb.sst)
	if err != nil {
		return nil, &ParseError{Format: string(FormatXLS), Err: fmt.Errorf("read sheet %q: %w", first.name, err)}
	}
	out := &sheet{Name: first.name, Cells: cells}
	for _, other := range wb.sheets[1:] {
		out.Others = append(out.Others, other.name)
	}
	return out, nil
}

func workbookStream(data []byte) ([]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open compound file: %w", err)
	}
	for _, f := range doc.File {
		if f.Name == "Workbook" {
			return io.ReadAll(f)
		}
	}
	return nil, errors.New("no Workbook stream (BIFF5 and older are not supported)")
}

type biffRecord struct {
	id   uint16
	data []byte
}

type biffStream struct {
	buf []byte
	pos int
}

func (s *biffStream) next() (biffRecord, error) {
	if s.pos+4 > len(s.buf) {
		return biffRecord{}, io.ErrUnexpectedEOF
	}
	id := binary.LittleEndian.Uint16(s.buf[s.pos:])
	size := int(binary.LittleEndian.Uint16(s.buf[s.pos+2:]))
	start := s.pos + 4
	if start+size > len(s.buf) {
		return biffRecord{}, fmt.Errorf("record 0x%04X at %d: %w", id, s.pos, io.ErrUnexpectedEOF)
	}
	s.pos = start + size
	return biffRecord{id: id, data: s.buf[start:s.pos]}, nil
}

func (s *biffStream) peek() uint16 {
	if s.pos+2 > len(s.buf) {
		return 0
	}
	return binary.LittleEndian.Uint16(s.buf[s.pos:])
}

type boundSheet struct {
	name   string
	offset int
}

type xlsGlobals struct {
	sheets []boundSheet
	sst    []string
}

func parseGlobals(stream []byte) (*xlsGlobals, error) {
	s := &biffStream{buf: stream}
	bof, err := s.next()
	if err != nil {
		return nil, err
	}
	if bof.id != recBOF || len(bof.data) < 2 {
		return nil, errors.New("missing BOF record")
	}
	if v := binary.LittleEndian.Uint16(bof.data); v != biff8 {
		return nil, fmt.Errorf("unsupported BIFF version 0x%04X", v)
	}

	wb := &xlsGlobals{}
	for {
		rec, err := s.next()
		if err != nil {
			return nil, err
		}
		switch rec.id {
		case recEOF:
			return wb, nil
		case recBoundSheet:
			if len(rec.data) < 8 {
				return nil, errors.New("short BOUNDSHEET record")
			}
			name, _, err := decodeChars(rec.data[8:], int(rec.data[6]), rec.data[7]&0x01 != 0)
			if err != nil {
				return nil, fmt.Errorf("sheet name: %w", err)
			}
			wb.sheets = append(wb.sheets, boundSheet{
				name:   name,
				offset: int(binary.LittleEndian.Uint32(rec.data)),
			})
		case recSST:
			segs := [][]byte{rec.data}
			for s.peek() == recContinue {
				c, err := s.next()
				if err != nil {
					return nil, err
				}
				segs = append(segs, c.data)
			}
			if wb.sst, err = parseSST(segs); err != nil {
				return nil, fmt.Errorf("shared strings: %w", err)
			}
		}
	}
}

// parseSheet collects the cells of the substream starting at offset into
// rows of text. Rows without cells are nil.
func parseSheet(stream []byte, offset int, sst []string) ([][]string, error) {
	if offset < 0 || offset >= len(stream) {
		return nil, fmt.Errorf("sheet offset %d out of range", offset)
	}
	s := &biffStream{buf: stream, pos: offset}
	if bof, err := s.next(); err != nil {
		return nil, err
	} else if bof.id != recBOF {
		return nil, errors.New("sheet does not start with BOF")
	}

	grid := map[int]map[int]string{}
	maxRow := -1
	set := func(row, col int, v string) {
		if grid[row] == nil {
			grid[row] = map[int]string{}
		}
		grid[row][col] = v
		maxRow = max(maxRow, row)
	}

	var (
		depth   int // embedded substreams, e.g. charts
		pending bool
		pendRow int
		pendCol int
	)
	for {
		rec, err := s.next()
		if err != nil {
			return nil, err
		}
		d := rec.data
		switch rec.id {
		case recBOF:
			depth++
			continue
		case recEOF:
			if depth > 0 {
				depth--
				continue
			}
			return materialize(grid, maxRow), nil
		case recString:
			if pending && depth == 0 && len(d) >= 3 {
				str, _, err := decodeChars(d[3:], int(binary.LittleEndian.Uint16(d)), d[2]&0x01 != 0)
				if err == nil {
					set(pendRow, pendCol, str)
				}
			}
			pending = false
			continue
		}
		if depth > 0 || len(d) < 6 {
			continue
		}
		row := int(binary.LittleEndian.Uint16(d[0:]))
		col := int(binary.LittleEndian.Uint16(d[2:]))

		switch rec.id {
		case recNumber:
			if len(d) >= 14 {
				set(row, col, formatNumber(math.Float64frombits(binary.LittleEndian.Uint64(d[6:]))))
			}
		case recRK:
			if len(d) >= 10 {
				set(row, col, formatNumber(rkValue(binary.LittleEndian.Uint32(d[6:]))))
			}
		case recMulRK:
			n := (len(d) - 6) / 6
			for i := 0; i < n; i++ {
				rk := binary.LittleEndian.Uint32(d[4+6*i+2:])
				set(row, col+i, formatNumber(rkValue(rk)))
			}
		case recLabelSST:
			if len(d) >= 10 {
				if idx := int(binary.LittleEndian.Uint32(d[6:])); idx >= 0 && idx < len(sst) {
					set(row, col, sst[idx])
				}
			}
		case recLabel:
			if len(d) >= 9 {
				str, _, err := decodeChars(d[9:], int(binary.LittleEndian.Uint16(d[6:])), d[8]&0x01 != 0)
				if err == nil {
					set(row, col, str)
				}
			}
		case recFormula:
			if len(d) < 14 {
				continue
			}
			pending = false
			res := d[6:14]
			if res[6] == 0xFF && res[7] == 0xFF {
				// Type 0 is a string result carried by the following
				// STRING record; booleans, errors and empty results stay empty.
				if res[0] == 0 {
					pending, pendRow, pendCol = true, row, col
				}
				continue
			}
			set(row, col, formatNumber(math.Float64frombits(binary.LittleEndian.Uint64(res))))
		}
	}
}

func materialize(grid map[int]map[int]string, maxRow int) [][]string {
	out := make([][]string, maxRow+1)
	for r, cols := range grid {
		width := 0
		for c := range cols {
			width = max(width, c+1)
		}
		line := make([]string, width)
		for c, v := range cols {
			line[c] = v
		}
		out[r] = line
	}
	return out
}

// rkValue decodes an RK number: a signed 30-bit integer or the top 30 bits
// of a double, optionally scaled by 1/100.
func rkValue(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

func formatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// decodeChars reads n characters, one byte each (Latin-1) or UTF-16LE when
// wide, and reports how many bytes were consumed.
func decodeChars(b []byte, n int, wide bool) (string, int, error) {
	if !wide {
		if len(b) < n {
			return "", 0, io.ErrUnexpectedEOF
		}
		runes := make([]rune, n)
		for i := range runes {
			runes[i] = rune(b[i])
		}
		return string(runes), n, nil
	}
	if len(b) < 2*n {
		return "", 0, io.ErrUnexpectedEOF
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(units)), 2 * n, nil
}

// sstReader reads the shared string table across its CONTINUE records.
type sstReader struct {
	segs [][]byte
	seg  int
	pos  int
}

func (r *sstReader) advance() bool {
	if r.seg+1 >= len(r.segs) {
		return false
	}
	r.seg++
	r.pos = 0
	return true
}

func (r *sstReader) take(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		cur := r.segs[r.seg]
		if r.pos >= len(cur) {
			if !r.advance() {
				return nil, io.ErrUnexpectedEOF
			}
			continue
		}
		k := min(n-len(out), len(cur)-r.pos)
		out = append(out, cur[r.pos:r.pos+k]...)
		r.pos += k
	}
	return out, nil
}

func (r *sstReader) skip(n int) error {
	for n > 0 {
		cur := r.segs[r.seg]
		if r.pos >= len(cur) {
			if !r.advance() {
				return io.ErrUnexpectedEOF
			}
			continue
		}
		k := min(n, len(cur)-r.pos)
		r.pos += k
		n -= k
	}
	return nil
}

func (r *sstReader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *sstReader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// chars reads n characters. When the characters run into a CONTINUE
// record, that record starts with an option byte that re-selects the width.
func (r *sstReader) chars(n int, wide bool) (string, error) {
	units := make([]uint16, 0, n)
	for len(units) < n {
		cur := r.segs[r.seg]
		if r.pos >= len(cur) {
			if !r.advance() {
				return "", io.ErrUnexpectedEOF
			}
			if cur = r.segs[r.seg]; len(cur) > 0 {
				wide = cur[0]&0x01 != 0
				r.pos = 1
			}
			continue
		}
		if wide {
			if len(cur)-r.pos < 2 {
				return "", io.ErrUnexpectedEOF
			}
			units = append(units, binary.LittleEndian.Uint16(cur[r.pos:]))
			r.pos += 2
			continue
		}
		units = append(units, uint16(cur[r.pos]))
		r.pos++
	}
	return string(utf16.Decode(units)), nil
}

func parseSST(segs [][]byte) ([]string, error) {
	r := &sstReader{segs: segs}
	if _, err := r.u32(); err != nil {
		return nil, err
	}
	unique, err := r.u32()
	if err != nil {
		return nil, err
	}

	strs := make([]string, 0, min(int(unique), 1<<16))
	for i := 0; i < int(unique); i++ {
		cch, err := r.u16()
		if err != nil {
			return nil, err
		}
		opts, err := r.take(1)
		if err != nil {
			return nil, err
		}
		var runs, ext int
		if opts[0]&0x08 != 0 {
			n, err := r.u16()
			if err != nil {
				return nil, err
			}
			runs = int(n)
		}
		if opts[0]&0x04 != 0 {
			n, err := r.u32()
			if err != nil {
				return nil, err
			}
			ext = int(n)
		}
		str, err := r.chars(int(cch), opts[0]&0x01 != 0)
		if err != nil {
			return nil, err
		}
		if err := r.skip(4*runs + ext); err != nil {
			return nil, err
		}
		strs = append(strs, str)
	}
	return strs, nil
}
