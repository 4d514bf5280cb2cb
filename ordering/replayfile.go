package ordering

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/tlmbus/protocol"
)

// ReplayEntry is one recorded transaction.
type ReplayEntry struct {
	Command    protocol.Command
	Address    uint64
	ID         uint32
	StartCycle uint64
	Latency    int
}

// ParseError tells which line of a replay file could not be parsed.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("replay line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var replayColumns = []string{"kind", "address", "id", "start_cycle", "latency"}

// ParseReplay reads replay entries from CSV. The first row names the
// columns, which may come in any order.
func ParseReplay(r io.Reader) ([]ReplayEntry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Line: 1, Err: errors.New("missing header")}
		}

		return nil, &ParseError{Line: 1, Err: err}
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}

	var entries []ReplayEntry

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			line := 0

			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				line = csvErr.Line
			}

			return nil, &ParseError{Line: line, Err: err}
		}

		line, _ := reader.FieldPos(0)

		e, err := parseRecord(record, index)
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}

		entries = append(entries, e)
	}

	return entries, nil
}

// LoadReplayFile reads replay entries from a CSV file.
func LoadReplayFile(path string) ([]ReplayEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := ParseReplay(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return entries, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	for _, c := range replayColumns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	return index, nil
}

func parseRecord(record []string, index map[string]int) (ReplayEntry, error) {
	var e ReplayEntry

	field := func(name string) string {
		return strings.TrimSpace(record[index[name]])
	}

	switch strings.ToUpper(field("kind")) {
	case "READ":
		e.Command = protocol.Read
	case "WRITE":
		e.Command = protocol.Write
	default:
		return e, fmt.Errorf("unknown kind %q", field("kind"))
	}

	addr, err := parseNumber(field("address"), 64)
	if err != nil {
		return e, fmt.Errorf("address: %w", err)
	}

	id, err := parseNumber(field("id"), 32)
	if err != nil {
		return e, fmt.Errorf("id: %w", err)
	}

	start, err := parseNumber(field("start_cycle"), 64)
	if err != nil {
		return e, fmt.Errorf("start_cycle: %w", err)
	}

	latency, err := parseNumber(field("latency"), 31)
	if err != nil {
		return e, fmt.Errorf("latency: %w", err)
	}

	e.Address = addr
	e.ID = uint32(id)
	e.StartCycle = start
	e.Latency = int(latency)

	return e, nil
}

// parseNumber accepts decimal and 0x-prefixed hexadecimal numbers.
func parseNumber(s string, bits int) (uint64, error) {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		return strconv.ParseUint(lower[2:], 16, bits)
	}

	return strconv.ParseUint(s, 10, bits)
}
