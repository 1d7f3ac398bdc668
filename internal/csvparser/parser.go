// =============================================================================
// CSV Invoice Tool - CSV Parser Module
// =============================================================================
//
// This module reads monthly store sales exports. Files come from point-of-sale
// systems and spreadsheet tools, so the parser tolerates:
//   - A UTF-8 byte order mark (Excel writes one)
//   - Shift_JIS / EUC-JP encoded files (configured via csv_settings.encoding)
//   - Different delimiters (comma, tab, pipe, semicolon)
//   - Short or long rows (missing cells read as "", extra cells are dropped)
//
// Each data line is returned as a types.RawRecord in header order together
// with its line number. Line 1 is the header, so the first data line is 2.
// Blank lines are skipped and do not consume a line number.
//
// The parser does not interpret values. That is the normalizer's job.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/csv-invoice-tool/internal/config"
	"github.com/ginjaninja78/csv-invoice-tool/internal/types"
)

// ErrUnsupportedEncoding is returned for an unknown csv_settings.encoding.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// FirstDataLine is the line number of the first data record.
const FirstDataLine = 2

// =============================================================================
// RECORDS
// =============================================================================

// Record is one data line of a CSV file.
type Record struct {
	// Line is the 2-based ordinal of the record (the header is line 1).
	Line int

	// Raw holds the cells keyed by header, in header order.
	Raw types.RawRecord
}

// =============================================================================
// ENCODINGS
// =============================================================================

// Decoder returns a transformer that converts input in the named encoding to
// UTF-8. A leading byte order mark always takes precedence and is removed.
//
// SUPPORTED NAMES (case-insensitive):
//   - "", "utf-8", "utf8"
//   - "shift_jis", "sjis", "cp932", "windows-31j"
//   - "euc-jp", "eucjp"
func Decoder(name string) (transform.Transformer, error) {
	var enc encoding.Encoding

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		enc = unicode.UTF8
	case "shift_jis", "shift-jis", "sjis", "cp932", "windows-31j":
		enc = japanese.ShiftJIS
	case "euc-jp", "eucjp":
		enc = japanese.EUCJP
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}

	return unicode.BOMOverride(enc.NewDecoder()), nil
}

// =============================================================================
// STREAMING PARSER
// =============================================================================

// StreamingParser reads a CSV file one record at a time.
//
// USAGE:
//   parser, err := NewStreamingParser(filePath, settings)
//   if err != nil {
//       return err
//   }
//   defer parser.Close()
//
//   for parser.Next() {
//       rec := parser.Record()
//       // Process the record...
//   }
//
//   if err := parser.Err(); err != nil {
//       return err
//   }
type StreamingParser struct {
	closer  io.Closer
	reader  *csv.Reader
	headers []string
	current Record
	line    int
	err     error
}

// NewStreamingParser opens filePath and reads its header line.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: Delimiter and encoding of the file.
//
// RETURNS:
//   - A parser positioned before the first data record. An empty file yields
//     a parser with no headers and no records.
//   - An error if the file cannot be opened or the header is malformed.
func NewStreamingParser(filePath string, settings config.CSVSettings) (*StreamingParser, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	parser, err := NewReader(file, settings)
	if err != nil {
		file.Close()
		return nil, err
	}
	parser.closer = file
	return parser, nil
}

// NewReader is NewStreamingParser for an already open stream. Close does not
// close r.
func NewReader(r io.Reader, settings config.CSVSettings) (*StreamingParser, error) {
	decoder, err := Decoder(settings.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(transform.NewReader(bufio.NewReader(r), decoder))
	configureReader(reader, settings)

	parser := &StreamingParser{
		reader: reader,
		line:   FirstDataLine - 1,
	}

	if err := parser.readHeaders(); err != nil {
		return nil, err
	}
	return parser, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Rows may be shorter or longer than the header.
	reader.FieldsPerRecord = -1

	reader.LazyQuotes = true

	// Cells are reported verbatim in errors.csv, so no trimming here.
	reader.TrimLeadingSpace = false
}

// readHeaders reads the header line. EOF leaves the parser empty.
func (p *StreamingParser) readHeaders() error {
	row, err := p.reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading header: %w", err)
	}
	p.headers = row
	return nil
}

// Next advances to the next record. It returns false at end of input or on
// a read error; check Err afterwards.
func (p *StreamingParser) Next() bool {
	if p.err != nil || p.headers == nil {
		return false
	}

	row, err := p.reader.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		p.err = fmt.Errorf("error reading line %d: %w", p.line+1, err)
		return false
	}

	p.line++

	raw := make(types.RawRecord, len(p.headers))
	for i, header := range p.headers {
		raw[i].Column = header
		if i < len(row) {
			raw[i].Value = row[i]
		}
	}

	p.current = Record{Line: p.line, Raw: raw}
	return true
}

// Record returns the record read by the last successful Next.
func (p *StreamingParser) Record() Record {
	return p.current
}

// Headers returns the header line as read.
func (p *StreamingParser) Headers() []string {
	return p.headers
}

// Err returns the first read error, if any.
func (p *StreamingParser) Err() error {
	return p.err
}

// Close closes the underlying file, if the parser opened it.
func (p *StreamingParser) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// ReadAll parses a whole file into memory. Intended for small files and tests;
// the pipeline streams.
func ReadAll(filePath string, settings config.CSVSettings) ([]Record, error) {
	parser, err := NewStreamingParser(filePath, settings)
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	var records []Record
	for parser.Next() {
		records = append(records, parser.Record())
	}
	if err := parser.Err(); err != nil {
		return records, err
	}
	return records, nil
}
