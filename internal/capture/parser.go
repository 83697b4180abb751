package capture

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"codeberg.org/mutker/serialmon/internal/errors"
)

const DefaultDelimiter = ","

// RecordError describes why a line was rejected.
type RecordError struct {
	Line   string
	Field  int
	Reason string
}

func (e RecordError) String() string {
	if e.Field < 0 {
		return fmt.Sprintf("%s (line %q)", e.Reason, e.Line)
	}
	return fmt.Sprintf("field %d: %s (line %q)", e.Field, e.Reason, e.Line)
}

// Parser turns delimited text lines into channel values. The channel count
// is fixed by the first line that parses and never changes afterwards.
type Parser struct {
	delimiter string
	channels  atomic.Int64
}

func NewParser(delimiter string) *Parser {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	return &Parser{delimiter: delimiter}
}

// Channels returns the established channel count, or 0 if no line has
// parsed yet.
func (p *Parser) Channels() int {
	return int(p.channels.Load())
}

// Parse converts line into values. A line is accepted only as a whole.
// Fields are decimal literals; inf and nan are accepted in any case.
func (p *Parser) Parse(line string) ([]float64, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, reject(line, -1, "empty line")
	}

	fields := strings.Split(trimmed, p.delimiter)

	expected := int(p.channels.Load())
	if expected != 0 && len(fields) != expected {
		return nil, reject(line, -1, fmt.Sprintf("expected %d fields, got %d", expected, len(fields)))
	}

	values := make([]float64, len(fields))
	for i, field := range fields {
		field = strings.TrimSpace(field)
		if !decimalLiteral(field) {
			return nil, reject(line, i, fmt.Sprintf("invalid number %q", field))
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, reject(line, i, fmt.Sprintf("invalid number %q", field))
		}
		values[i] = v
	}

	if expected == 0 && !p.channels.CompareAndSwap(0, int64(len(values))) {
		// Another goroutine fixed the arity first; re-check against it.
		if got := int(p.channels.Load()); got != len(values) {
			return nil, reject(line, -1, fmt.Sprintf("expected %d fields, got %d", got, len(values)))
		}
	}

	return values, nil
}

// decimalLiteral rules out the hexadecimal and underscore forms that
// strconv.ParseFloat also accepts. Inf and NaN spellings stay valid.
func decimalLiteral(field string) bool {
	digits := strings.TrimLeft(field, "+-")
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		return false
	}

	return !strings.ContainsRune(field, '_')
}

func reject(line string, field int, reason string) error {
	return errors.New().WithData(ErrRecordParse, RecordError{
		Line:   line,
		Field:  field,
		Reason: reason,
	})
}
