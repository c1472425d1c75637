package ingest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/lox/drillboard/internal/dataset"
	"github.com/lox/drillboard/internal/models"
	"github.com/lox/drillboard/internal/store"

	_ "modernc.org/sqlite"
)

const (
	csvMime  = "text/csv"
	xlsxMime = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func testPipeline() *Pipeline {
	p := NewPipeline(0)
	p.Now = func() time.Time { return fixedNow }
	return p
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"float64", 85.5, 85.5},
		{"float32", float32(0.5), 0.5},
		{"int", 1000, 1000},
		{"int64", int64(-3), -3},
		{"uint8", uint8(7), 7},
		{"plain string", "1000", 1000},
		{"decimal string", "0.25", 0.25},
		{"padded string", "  42.5  ", 42.5},
		{"unit suffix", "12ft", 12},
		{"percent suffix", "25%", 25},
		{"leading dot", ".5", 0.5},
		{"trailing dot", "5.", 5},
		{"signed", "-7.25", -7.25},
		{"exponent", "1e3", 1000},
		{"exponent with junk", "1e3x", 1000},
		{"dangling exponent", "2e", 2},
		{"no digits", "abc", 0},
		{"lone sign", "-", 0},
		{"lone dot", ".", 0},
		{"empty", "", 0},
		{"NaN literal", "NaN", 0},
		{"Infinity literal", "Infinity", 0},
		{"overflow", "1e400", 0},
		{"bytes", []byte("3.5"), 3.5},
		{"json number", json.Number("9.75"), 9.75},
		{"bool", true, 0},
		{"NaN float", math.NaN(), 0},
		{"+Inf float", math.Inf(1), 0},
		{"-Inf float", math.Inf(-1), 0},
		{"struct", struct{}{}, 0},
		{"time", fixedNow, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Coerce(tt.in)
			if got != tt.want {
				t.Errorf("Coerce(%#v) = %v, want %v", tt.in, got, tt.want)
			}
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Errorf("Coerce(%#v) returned non-finite %v", tt.in, got)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		got := Normalize(nil, fixedNow)
		if got == nil || len(got) != 0 {
			t.Fatalf("Normalize(nil) = %#v, want empty non-nil slice", got)
		}
	})

	t.Run("row count and ids", func(t *testing.T) {
		rows := []RawRow{{}, {"DEPTH": "x"}, {"DEPTH": 3.0}, {}}
		got := Normalize(rows, fixedNow)
		if len(got) != len(rows) {
			t.Fatalf("got %d records, want %d", len(got), len(rows))
		}
		for i, r := range got {
			if r.ID != i+1 {
				t.Errorf("record %d has id %d", i, r.ID)
			}
			if !r.Timestamp.Equal(fixedNow) {
				t.Errorf("record %d timestamp %v", i, r.Timestamp)
			}
		}
		if got[2].Depth != 3 {
			t.Errorf("depth = %v, want 3", got[2].Depth)
		}
	})

	t.Run("all columns mapped", func(t *testing.T) {
		row := RawRow{}
		for i, h := range Headers() {
			row[h] = float64(i + 1)
		}
		r := Normalize([]RawRow{row}, fixedNow)[0]
		want := []float64{r.Depth, r.SH, r.SS, r.LS, r.DOL, r.ANH, r.Coal, r.Salt,
			r.DT, r.GR, r.MinFinal, r.UCS, r.FA, r.RAT, r.ROP}
		for i, v := range want {
			if v != float64(i+1) {
				t.Errorf("column %s = %v, want %d", Columns[i].Header, v, i+1)
			}
		}
	})

	t.Run("headers are case sensitive", func(t *testing.T) {
		r := Normalize([]RawRow{{"depth": "100", "%sh": "0.5", "%Coal": "0.1"}}, fixedNow)[0]
		if r.Depth != 0 || r.SH != 0 {
			t.Errorf("lowercase headers matched: depth=%v sh=%v", r.Depth, r.SH)
		}
		if r.Coal != 0.1 {
			t.Errorf("coal = %v, want 0.1", r.Coal)
		}
	})
}

func TestIngestCSVScenario(t *testing.T) {
	res, err := testPipeline().Ingest([]byte("DEPTH,%SH,DT\n1000,0.25,85.5\n"), "log.csv", csvMime)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.RecordCount != 1 || len(res.Full) != 1 || len(res.Preview) != 1 {
		t.Fatalf("counts: record=%d full=%d preview=%d", res.RecordCount, len(res.Full), len(res.Preview))
	}
	want := models.Record{ID: 1, Depth: 1000, SH: 0.25, DT: 85.5, Timestamp: fixedNow}
	if !reflect.DeepEqual(res.Full[0], want) {
		t.Errorf("record = %+v, want %+v", res.Full[0], want)
	}
	if res.Format != FormatCSV {
		t.Errorf("format = %q", res.Format)
	}
}

func TestIngestUnitSuffixScenario(t *testing.T) {
	res, err := testPipeline().Ingest([]byte("DEPTH,ROP\n12ft,n/a\n"), "log.csv", csvMime)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := res.Full[0]; got.Depth != 12 || got.ROP != 0 {
		t.Errorf("depth=%v rop=%v, want 12 and 0", got.Depth, got.ROP)
	}
}

func TestIngestCSVShapes(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantCount int
		check     func(t *testing.T, recs []models.Record)
	}{
		{
			name:      "byte order mark on header",
			data:      "\ufeffDEPTH,GR\n10,50\n",
			wantCount: 1,
			check: func(t *testing.T, recs []models.Record) {
				if recs[0].Depth != 10 {
					t.Errorf("depth = %v, want 10", recs[0].Depth)
				}
			},
		},
		{
			name:      "blank rows skipped",
			data:      "\n,,\nDEPTH,GR\n10,50\n,\n\n20,60\n",
			wantCount: 2,
			check: func(t *testing.T, recs []models.Record) {
				if recs[1].Depth != 20 || recs[1].ID != 2 {
					t.Errorf("second record = %+v", recs[1])
				}
			},
		},
		{
			name:      "duplicate header keeps first",
			data:      "DEPTH,DEPTH\n10,99\n",
			wantCount: 1,
			check: func(t *testing.T, recs []models.Record) {
				if recs[0].Depth != 10 {
					t.Errorf("depth = %v, want 10", recs[0].Depth)
				}
			},
		},
		{
			name:      "ragged rows",
			data:      "DEPTH,GR,ROP\n10\n20,1,2,3\n",
			wantCount: 2,
			check: func(t *testing.T, recs []models.Record) {
				if recs[0].GR != 0 || recs[1].ROP != 2 {
					t.Errorf("records = %+v", recs)
				}
			},
		},
		{
			name:      "header only",
			data:      "DEPTH,GR\n",
			wantCount: 0,
		},
		{
			name:      "empty file",
			data:      "",
			wantCount: 0,
		},
		{
			name:      "unknown columns only",
			data:      "FOO,BAR\n1,2\n",
			wantCount: 1,
			check: func(t *testing.T, recs []models.Record) {
				if recs[0].Depth != 0 {
					t.Errorf("depth = %v, want 0", recs[0].Depth)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := testPipeline().Ingest([]byte(tt.data), "x.csv", csvMime)
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if res.RecordCount != tt.wantCount {
				t.Fatalf("record count = %d, want %d", res.RecordCount, tt.wantCount)
			}
			if tt.check != nil {
				tt.check(t, res.Full)
			}
		})
	}
}

func TestHeaderKeys(t *testing.T) {
	got := headerKeys([]string{"DEPTH", "GR", "DEPTH", "", "DEPTH"})
	want := []string{"DEPTH", "GR", "DEPTH_1", "", "DEPTH_2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("headerKeys = %v, want %v", got, want)
	}
}

func TestPreviewBound(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 250} {
		var b strings.Builder
		b.WriteString("DEPTH\n")
		for i := range n {
			b.WriteString(strings.Repeat("1", 1+i%3))
			b.WriteString("\n")
		}
		res, err := testPipeline().Ingest([]byte(b.String()), "p.csv", csvMime)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if res.RecordCount != n {
			t.Errorf("n=%d: record count %d", n, res.RecordCount)
		}
		if want := min(PreviewSize, n); len(res.Preview) != want {
			t.Errorf("n=%d: preview %d, want %d", n, len(res.Preview), want)
		}
		for i := range res.Preview {
			if res.Preview[i] != res.Full[i] {
				t.Errorf("n=%d: preview[%d] differs from full", n, i)
			}
		}
	}
}

func buildXLSX(t *testing.T, extraSheets ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]any{
		{"DEPTH", "%SH", "%SS", "DT", "GR", "NOTE"},
		{1000, 0.25, 0.5, 85.5, 60, "ok"},
		{1010.5, "0.3", nil, "bad", 61, ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range extraSheets {
		if _, err := f.NewSheet(name); err != nil {
			t.Fatal(err)
		}
		if err := f.SetCellValue(name, "A1", "DEPTH"); err != nil {
			t.Fatal(err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestIngestXLSX(t *testing.T) {
	res, err := testPipeline().Ingest(buildXLSX(t), "log.xlsx", xlsxMime)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Format != FormatXLSX || res.Sheet != "Sheet1" {
		t.Errorf("format=%q sheet=%q", res.Format, res.Sheet)
	}
	if len(res.IgnoredSheets) != 0 {
		t.Errorf("ignored sheets = %v", res.IgnoredSheets)
	}
	if res.RecordCount != 2 {
		t.Fatalf("record count = %d, want 2", res.RecordCount)
	}
	first, second := res.Full[0], res.Full[1]
	if first.Depth != 1000 || first.SH != 0.25 || first.SS != 0.5 || first.DT != 85.5 || first.GR != 60 {
		t.Errorf("first = %+v", first)
	}
	if second.Depth != 1010.5 || second.SH != 0.3 || second.SS != 0 || second.DT != 0 {
		t.Errorf("second = %+v", second)
	}
}

func TestIngestXLSXReadsFirstSheetOnly(t *testing.T) {
	res, err := testPipeline().Ingest(buildXLSX(t, "Notes", "Survey"), "log.xlsx", xlsxMime)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.RecordCount != 2 {
		t.Errorf("record count = %d, want 2", res.RecordCount)
	}
	if want := []string{"Notes", "Survey"}; !reflect.DeepEqual(res.IgnoredSheets, want) {
		t.Errorf("ignored sheets = %v, want %v", res.IgnoredSheets, want)
	}
}

func TestFormatDispatch(t *testing.T) {
	csv := []byte("DEPTH\n5\n")
	xlsx := buildXLSX(t)
	xls := readFixture(t, "wells.xls")

	tests := []struct {
		name       string
		data       []byte
		fileName   string
		mimeType   string
		wantFormat Format
		wantParse  bool
	}{
		{"csv by mime and name", csv, "data.csv", csvMime, FormatCSV, false},
		{"csv by extension, generic mime", csv, "DATA.CSV", "application/octet-stream", FormatCSV, false},
		{"csv by mime alias", csv, "export", "application/csv", FormatCSV, false},
		{"xlsx by mime and name", xlsx, "data.xlsx", xlsxMime, FormatXLSX, false},
		{"xlsx with legacy mime", xlsx, "data.xls", "application/vnd.ms-excel", FormatXLSX, false},
		{"xls by mime and name", xls, "wells.xls", "application/vnd.ms-excel", FormatXLS, false},
		{"xls bytes named xlsx", xls, "wells.xlsx", xlsxMime, FormatXLS, false},
		{"csv bytes named xlsx", csv, "data.xlsx", xlsxMime, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := testPipeline().Ingest(tt.data, tt.fileName, tt.mimeType)
			if tt.wantParse {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("err = %v, want ParseError", err)
				}
				if pe.Error() != "Invalid file format. Please ensure the file contains valid data." {
					t.Errorf("message = %q", pe.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if res.Format != tt.wantFormat {
				t.Errorf("format = %q, want %q", res.Format, tt.wantFormat)
			}
		})
	}
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// wells.xls holds a "Log" sheet with a custom number format on DEPTH,
// formula cells with numeric and string cached results, an RK/MULRK row,
// boolean and error cells, and a second "Notes" sheet.
func TestIngestXLS(t *testing.T) {
	res, err := testPipeline().Ingest(readFixture(t, "wells.xls"), "wells.xls", "application/vnd.ms-excel")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Format != FormatXLS || res.Sheet != "Log" {
		t.Errorf("format=%q sheet=%q", res.Format, res.Sheet)
	}
	if want := []string{"Notes"}; !reflect.DeepEqual(res.IgnoredSheets, want) {
		t.Errorf("ignored sheets = %v, want %v", res.IgnoredSheets, want)
	}
	if res.RecordCount != 2 {
		t.Fatalf("record count = %d, want 2", res.RecordCount)
	}

	first, second := res.Full[0], res.Full[1]
	if first.Depth != 1000 {
		t.Errorf("custom-format depth = %v, want 1000", first.Depth)
	}
	if first.SH != 0.25 || first.GR != 60 || first.Coal != 0.05 {
		t.Errorf("first = %+v", first)
	}
	if first.DT != 85.5 {
		t.Errorf("formula DT = %v, want cached 85.5", first.DT)
	}
	if first.ROP != 12 {
		t.Errorf("string formula ROP = %v, want 12", first.ROP)
	}

	if second.Depth != 1001.5 || second.SH != 0.3 || second.ROP != -3.5 {
		t.Errorf("second = %+v", second)
	}
	if second.DT != 0 || second.GR != 0 || second.Coal != 0 {
		t.Errorf("boolean, error and text cells should read as absent: %+v", second)
	}
}

func TestIngestXLSMalformed(t *testing.T) {
	fixture := readFixture(t, "wells.xls")

	badVersion := bytes.Clone(fixture)
	// BOF version of the Workbook stream, which starts at sector 0.
	badVersion[512+4], badVersion[512+5] = 0x00, 0x05

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", fixture[:len(fixture)/2]},
		{"header only", fixture[:512]},
		{"old biff version", badVersion},
		{"signature only", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testPipeline().Ingest(tt.data, "wells.xls", "application/vnd.ms-excel")
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want ParseError", err)
			}
			if pe.Format != string(FormatXLS) {
				t.Errorf("format = %q", pe.Format)
			}
		})
	}
}

func TestRKValue(t *testing.T) {
	tests := []struct {
		rk   uint32
		want float64
	}{
		{1000<<2 | 0x02, 1000},
		{30<<2 | 0x03, 0.3},
		{0xFFFFFFE6, -7},
		// High words of IEEE doubles.
		{0x3FF00000, 1},
		{0x3FF00001, 0.01},
		{0x40590000, 100},
	}
	for _, tt := range tests {
		if got := rkValue(tt.rk); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("rkValue(%#x) = %v, want %v", tt.rk, got, tt.want)
		}
	}
}

func TestIngestXLSXBooleansAreAbsent(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	for ref, v := range map[string]any{"A1": "DEPTH", "B1": "GR", "C1": "DT", "A2": 100, "B2": true, "C2": 1} {
		if err := f.SetCellValue("Sheet1", ref, v); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	res, err := testPipeline().Ingest(buf.Bytes(), "bool.xlsx", xlsxMime)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.RecordCount != 1 {
		t.Fatalf("record count = %d", res.RecordCount)
	}
	if r := res.Full[0]; r.GR != 0 || r.DT != 1 || r.Depth != 100 {
		t.Errorf("record = %+v, want GR absent and DT 1", r)
	}
}

func TestSniffWorkbook(t *testing.T) {
	tests := []struct {
		data []byte
		want Format
		err  bool
	}{
		{[]byte("PK\x03\x04rest"), FormatXLSX, false},
		{append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, 0, 0), FormatXLS, false},
		{[]byte("DEPTH,GR"), "", true},
		{nil, "", true},
	}
	for _, tt := range tests {
		got, err := sniffWorkbook(tt.data)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("sniffWorkbook(%q) = %q, %v", tt.data, got, err)
		}
	}
}

func TestValidate(t *testing.T) {
	p := NewPipeline(1024)

	tests := []struct {
		name     string
		fileName string
		mimeType string
		size     int64
		check    func(error) bool
	}{
		{"ok csv", "a.csv", csvMime, 10, func(err error) bool { return err == nil }},
		{"ok by extension only", "A.XLSX", "application/octet-stream", 10, func(err error) bool { return err == nil }},
		{"ok by mime only", "upload", xlsxMime, 10, func(err error) bool { return err == nil }},
		{"at limit", "a.csv", csvMime, 1024, func(err error) bool { return err == nil }},
		{"no file", "", csvMime, 10, func(err error) bool {
			var ve *ValidationError
			return errors.As(err, &ve) && ve.Error() == "No file uploaded"
		}},
		{"too large", "a.csv", csvMime, 1025, func(err error) bool {
			var se *SizeLimitError
			return errors.As(err, &se)
		}},
		{"unsupported", "a.txt", "text/plain", 10, func(err error) bool {
			var ue *UnsupportedTypeError
			return errors.As(err, &ue) && strings.HasSuffix(ue.Error(), "Received: text/plain")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.fileName, tt.mimeType, tt.size)
			if !tt.check(err) {
				t.Errorf("Validate = %v", err)
			}
		})
	}
}

func TestSizeLimitMessage(t *testing.T) {
	err := &SizeLimitError{Limit: DefaultMaxBytes}
	if err.Error() != "File size too large. Maximum size is 10MB." {
		t.Errorf("message = %q", err.Error())
	}
}

// countingReader records how many bytes were pulled from it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func TestReadLimitedStopsEarly(t *testing.T) {
	const limit = 1 << 10
	src := &countingReader{r: bytes.NewReader(make([]byte, 1<<20))}

	_, err := ReadLimited(src, limit)
	var se *SizeLimitError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SizeLimitError", err)
	}
	if src.n > limit+1 {
		t.Errorf("read %d bytes, want at most %d", src.n, limit+1)
	}

	data, err := ReadLimited(bytes.NewReader([]byte("abc")), limit)
	if err != nil || string(data) != "abc" {
		t.Errorf("ReadLimited = %q, %v", data, err)
	}
}

func TestOversizedRejectedBeforeParsing(t *testing.T) {
	p := NewPipeline(16)
	// Invalid workbook bytes would be a ParseError if they reached a parser.
	_, err := p.Ingest(bytes.Repeat([]byte{0xFF}, 17), "big.xlsx", xlsxMime)
	var se *SizeLimitError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SizeLimitError", err)
	}
}

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name      string
		rec       models.Record
		wantFlags []string
	}{
		{"clean", models.Record{Depth: 100, SH: 0.5, SS: 0.5, GR: 40, ROP: 12}, nil},
		{"negative depth", models.Record{Depth: -1}, []string{FlagDepthNegative}},
		{"percent entered as whole number", models.Record{SH: 25}, []string{FlagLithologyOutOfRange, FlagLithologySumHigh}},
		{"sum within tolerance", models.Record{SH: 0.505, SS: 0.5}, nil},
		{"sum too high", models.Record{SH: 0.6, SS: 0.6}, []string{FlagLithologySumHigh}},
		{"negative gamma and rop", models.Record{GR: -1, ROP: -2}, []string{FlagGammaNegative, FlagROPNegative}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateRecord(&tt.rec)
			if !reflect.DeepEqual(got, tt.wantFlags) {
				t.Errorf("flags = %v, want %v", got, tt.wantFlags)
			}
		})
	}
}

func TestSummarizeFlags(t *testing.T) {
	recs := []models.Record{
		{Depth: 100},
		{Depth: 90},
		{Depth: -5, GR: -1},
	}
	got := SummarizeFlags(recs)
	want := map[string]int{
		FlagDepthOutOfOrder: 2,
		FlagDepthNegative:   1,
		FlagGammaNegative:   1,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SummarizeFlags = %v, want %v", got, want)
	}
	if QualityFlagsToJSON(nil) != "" {
		t.Error("empty flags should encode to empty string")
	}
	if s := QualityFlagsToJSON(want); !strings.Contains(s, `"depth_out_of_order":2`) {
		t.Errorf("json = %s", s)
	}
}

func setupImporter(t *testing.T) (*Importer, *store.Store, dataset.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatal(err)
	}
	if err := st.SeedWells(store.DefaultWells); err != nil {
		t.Fatal(err)
	}
	ds := dataset.NewMemory()
	return NewImporter(st, ds, testPipeline(), "memory"), st, ds
}

func TestImporterStoresDatasetAndAudit(t *testing.T) {
	im, st, ds := setupImporter(t)
	ctx := context.Background()
	payload := []byte("DEPTH,%SH\n100,0.2\n90,0.3\n")

	res, err := im.Import(ctx, ImportRequest{WellID: "2", FileName: "a.csv", MimeType: csvMime, Data: payload})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.UploadID == "" || res.WellID != "2" || res.RecordCount != 2 {
		t.Fatalf("result = %+v", res)
	}

	got, err := ds.Get(ctx, "2")
	if err != nil || len(got) != 2 {
		t.Fatalf("dataset = %v, %v", got, err)
	}

	uploads, err := st.ListUploads(10)
	if err != nil || len(uploads) != 1 {
		t.Fatalf("uploads = %v, %v", uploads, err)
	}
	u := uploads[0]
	if !u.Success || u.RecordCount.Int64 != 2 || u.Format.String != "csv" || u.Backend != "memory" {
		t.Errorf("upload = %+v", u)
	}
	if !strings.Contains(u.QualityFlags.String, FlagDepthOutOfOrder) {
		t.Errorf("quality flags = %q", u.QualityFlags.String)
	}

	raw, err := st.GetRawFile(u.PayloadHash.String)
	if err != nil || !bytes.Equal(raw, payload) {
		t.Errorf("raw file = %q, %v", raw, err)
	}
}

func TestImporterWithoutWellSkipsStore(t *testing.T) {
	im, _, ds := setupImporter(t)
	ctx := context.Background()

	res, err := im.Import(ctx, ImportRequest{FileName: "a.csv", MimeType: csvMime, Data: []byte("DEPTH\n1\n")})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.RecordCount != 1 {
		t.Errorf("record count = %d", res.RecordCount)
	}
	for _, w := range store.DefaultWells {
		if ok, _ := ds.Contains(ctx, w.ID); ok {
			t.Errorf("well %s unexpectedly has data", w.ID)
		}
	}
}

func TestImporterFailures(t *testing.T) {
	im, st, ds := setupImporter(t)
	ctx := context.Background()

	_, err := im.Import(ctx, ImportRequest{WellID: "42", FileName: "a.csv", MimeType: csvMime, Data: []byte("DEPTH\n1\n")})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("unknown well err = %v", err)
	}

	_, err = im.Import(ctx, ImportRequest{WellID: "1", FileName: "a.xlsx", MimeType: xlsxMime, Data: []byte("nope")})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("parse err = %v", err)
	}
	if ok, _ := ds.Contains(ctx, "1"); ok {
		t.Error("failed import stored a dataset")
	}

	uploads, err := st.ListUploads(10)
	if err != nil || len(uploads) != 1 {
		t.Fatalf("uploads = %v, %v", uploads, err)
	}
	u := uploads[0]
	if u.Success || u.ErrorMessage.String != (&ParseError{}).Error() {
		t.Errorf("failed upload = %+v", u)
	}
	if !strings.Contains(u.ErrorDetail.String, "open xlsx") {
		t.Errorf("error detail = %q, want parser cause", u.ErrorDetail.String)
	}
}

func TestAuditError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantMsg    string
		wantDetail string
	}{
		{"parse", &ParseError{Format: "xlsx", Err: errors.New("zip: not a valid zip file")},
			"Invalid file format. Please ensure the file contains valid data.", "zip: not a valid zip file"},
		{"parse without cause", &ParseError{Format: "csv"},
			"Invalid file format. Please ensure the file contains valid data.", ""},
		{"internal", fmt.Errorf("store dataset 1: %w", errors.New("database is locked")),
			"Failed to upload file", "store dataset 1: database is locked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, detail := auditError(tt.err)
			if msg != tt.wantMsg || detail != tt.wantDetail {
				t.Errorf("auditError = %q, %q", msg, detail)
			}
		})
	}
}

func TestIsRejected(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrValidation("No file uploaded"), true},
		{&SizeLimitError{Limit: DefaultMaxBytes}, true},
		{&UnsupportedTypeError{MimeType: "image/png"}, true},
		{&NotFoundError{Message: "Well not found"}, true},
		{fmt.Errorf("wrapped: %w", &UnsupportedTypeError{}), true},
		{&ParseError{Format: "csv"}, false},
		{errors.New("disk full"), false},
	}
	for _, tt := range tests {
		if got := IsRejected(tt.err); got != tt.want {
			t.Errorf("IsRejected(%v) = %v, want %v", tt.err, got, tt.want)
		}
		if got, want := outcome(tt.err), map[bool]string{true: "rejected", false: "failed"}[tt.want]; got != want {
			t.Errorf("outcome(%v) = %q, want %q", tt.err, got, want)
		}
	}
}

func TestFetchFTPRejectsBadURLs(t *testing.T) {
	ctx := context.Background()
	for _, u := range []string{"http://example.com/a.csv", "ftp://example.com/", "://bad"} {
		if _, _, err := FetchFTP(ctx, u, DefaultMaxBytes); err == nil {
			t.Errorf("FetchFTP(%q) succeeded", u)
		}
	}
}
