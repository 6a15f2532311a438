package batch

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/cartograph/internal/models"
)

// resultFieldCount is the number of columns in a combined result row:
// recId, seqNumber, seqLength, latitude, longitude.
const resultFieldCount = 5

const (
	fieldRequestID = 0
	fieldLatitude  = 3
	fieldLongitude = 4
)

// Row is one decoded result line.
type Row struct {
	ID          models.RequestID
	Coordinates models.Coordinates
	Resolved    bool // Resolved is false when the coordinates could not be parsed or are empty.
	Line        int
}

// ResultDecoder reads rows from a batch result table. It is lazy and cannot be restarted.
type ResultDecoder struct {
	scanner    *bufio.Scanner
	delim      string
	line       int
	headerDone bool
}

// NewResultDecoder creates a decoder over r splitting fields on delim.
func NewResultDecoder(r io.Reader, delim rune) *ResultDecoder {
	return &ResultDecoder{
		scanner: bufio.NewScanner(r),
		delim:   string(delim),
	}
}

// Next returns the next row, or io.EOF once the table is exhausted.
// A row with the wrong number of fields yields a *MalformedResultError and decoding must stop.
func (d *ResultDecoder) Next() (Row, error) {
	for d.scanner.Scan() {
		d.line++
		line := strings.TrimRight(d.scanner.Text(), "\r")

		if !d.headerDone {
			d.headerDone = true
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, d.delim)
		if err := checkRowShape(fields, d.line, line); err != nil {
			return Row{}, err
		}

		return parseRow(fields, d.line), nil
	}

	if err := d.scanner.Err(); err != nil {
		return Row{}, fmt.Errorf("failed to read batch result: %w", err)
	}

	return Row{}, io.EOF
}

// checkRowShape is the single place deciding what a row with an unexpected field count means.
// A shape violation indicates the result schema changed, so the whole decode is aborted.
func checkRowShape(fields []string, lineNo int, line string) error {
	if len(fields) != resultFieldCount {
		return &MalformedResultError{Line: lineNo, Content: line, Fields: len(fields)}
	}

	return nil
}

func parseRow(fields []string, lineNo int) Row {
	row := Row{
		ID:   models.RequestID(strings.TrimSpace(fields[fieldRequestID])),
		Line: lineNo,
	}

	lat, errLat := strconv.ParseFloat(strings.TrimSpace(fields[fieldLatitude]), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(fields[fieldLongitude]), 64)
	if errLat != nil || errLon != nil || !isFinite(lat) || !isFinite(lon) {
		return row
	}

	row.Coordinates = models.Coordinates{Latitude: lat, Longitude: lon}
	row.Resolved = !row.Coordinates.IsEmpty()

	return row
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
