// Package sheet turns uploaded spreadsheets into raw header/value rows.
//
// The first non-blank row supplies the headers. Every later non-blank row
// becomes a core.RawRow whose cells keep the column order of the file; empty
// cells are left out. Blank headers are named __EMPTY, __EMPTY_1, ... and
// repeated headers get _1, _2, ... suffixes so each cell has a unique key.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/pharmadist/internal/core"
)

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrEmpty       = errors.New("empty file")
	ErrTooLarge    = errors.New("file too large")
)

// Options controls how a file is read.
type Options struct {
	// MaxSize rejects files larger than this many bytes. Zero means no limit.
	MaxSize int64

	// Encoding is the source encoding of CSV files; xlsx is always UTF-8.
	// Empty means UTF-8.
	Encoding string
}

// Read parses the file called name from r. The extension picks the format.
func Read(name string, r io.Reader, opts Options) ([]core.RawRow, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv", ".xlsx", ".xlsm":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}

	data, err := readLimited(r, opts.MaxSize)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	var grid [][]string
	if ext == ".csv" {
		grid, err = readCSV(data, opts.Encoding)
	} else {
		grid, err = readXLSX(data)
	}
	if err != nil {
		return nil, err
	}
	return Rows(grid), nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, max)
	}
	return data, nil
}

// Decoder returns the decoder for a named source encoding.
func Decoder(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "shift-jis", "shift_jis", "sjis":
		return japanese.ShiftJIS.NewDecoder(), nil
	}
	return nil, fmt.Errorf("encoding error: unknown encoding %q", name)
}

func readCSV(data []byte, enc string) ([][]string, error) {
	dec, err := Decoder(enc)
	if err != nil {
		return nil, err
	}

	// A byte order mark wins over the configured encoding.
	t := transform.Chain(unicode.BOMOverride(dec), runes.ReplaceIllFormed())
	cr := csv.NewReader(transform.NewReader(bytes.NewReader(data), t))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	grid, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return grid, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	return rows, nil
}

// Rows converts a grid of cell text into raw rows keyed by the header row.
func Rows(grid [][]string) []core.RawRow {
	start := -1
	width := 0
	for i, row := range grid {
		if isBlank(row) {
			continue
		}
		if start < 0 {
			start = i
		}
		width = max(width, len(row))
	}
	if start < 0 {
		return []core.RawRow{}
	}

	headers := Headers(grid[start], width)

	out := make([]core.RawRow, 0, len(grid)-start-1)
	for _, row := range grid[start+1:] {
		if isBlank(row) {
			continue
		}
		raw := make(core.RawRow, 0, len(row))
		for i, cell := range row {
			v := strings.TrimSpace(cell)
			if v == "" {
				continue
			}
			raw = append(raw, core.Cell{Header: headers[i], Value: v})
		}
		out = append(out, raw)
	}
	return out
}

// Headers names width columns from the header cells, filling blanks and
// de-duplicating repeats.
func Headers(cells []string, width int) []string {
	width = max(width, len(cells))
	out := make([]string, width)
	seen := make(map[string]int, width)

	for i := range out {
		h := ""
		if i < len(cells) {
			h = strings.TrimSpace(cells[i])
		}
		if h == "" {
			h = "__EMPTY"
		}
		name := h
		if n, ok := seen[h]; ok {
			name = fmt.Sprintf("%s_%d", h, n)
			for {
				if _, taken := seen[name]; !taken {
					break
				}
				n++
				name = fmt.Sprintf("%s_%d", h, n)
			}
			seen[h] = n + 1
		} else {
			seen[h] = 1
		}
		seen[name] = max(seen[name], 1)
		out[i] = name
	}
	return out
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
