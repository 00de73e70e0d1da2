package fetcher

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

const utf8BOM = "\uFEFF"

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter  rune   // default ','
	Encoding   string // charset label such as "windows-1252"; empty means UTF-8
	LazyQuotes bool
	TrimSpace  bool
}

// CSVReader pulls records from a delimited file one at a time, so callers
// decide how many rows are resident.
type CSVReader struct {
	r    *csv.Reader
	opts CSVOptions
	line int
}

// NewCSVReader wraps r, decoding it from opts.Encoding first when set.
func NewCSVReader(r io.Reader, opts CSVOptions) (*CSVReader, error) {
	if opts.Encoding != "" {
		enc, err := htmlindex.Get(opts.Encoding)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: unsupported encoding %q", opts.Encoding)
		}
		r = enc.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields

	return &CSVReader{r: reader, opts: opts}, nil
}

// ReadHeader reads the first record as the header row, dropping a UTF-8 BOM.
func (c *CSVReader) ReadHeader() ([]string, error) {
	header, err := c.Read()
	if err == io.EOF {
		return nil, eris.New("csv: empty file, no header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	return header, nil
}

// Read returns the next record, or io.EOF when the input is exhausted.
// Malformed records come back as *csv.ParseError (see IsRowError) and the
// reader stays positioned on the following record.
func (c *CSVReader) Read() ([]string, error) {
	record, err := c.r.Read()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			c.line = pe.StartLine
		}
		return nil, err
	}

	c.line, _ = c.r.FieldPos(0)
	if c.opts.TrimSpace {
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
	}
	return record, nil
}

// Line returns the input line on which the last record started.
func (c *CSVReader) Line() int {
	return c.line
}

// IsRowError reports whether err concerns only the current record, in which
// case reading can continue with the next one.
func IsRowError(err error) bool {
	var pe *csv.ParseError
	return errors.As(err, &pe)
}
