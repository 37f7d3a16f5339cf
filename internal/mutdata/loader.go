package mutdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// LoadTSV reads a tab-separated evaluation table. The first line is a
// header; recognized columns are chrom, start, us<d>, ds<d>, mut_type and
// prob<c>. Unrecognized columns are ignored so model pipelines can carry
// extra annotation columns through.
func LoadTSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadTSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", path, err)
	}
	return t, nil
}

// ReadTSV parses a tab-separated evaluation table from r.
func ReadTSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	layout, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	flank := len(layout.up)
	classes := len(layout.probs)
	hasCoords := layout.chrom >= 0 && layout.pos >= 0

	t := &Table{
		Up:   make([][]string, flank),
		Down: make([][]string, flank),
	}
	var probData []float64

	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record at line %d: %w", line+1, err)
		}
		line++
		if len(record) != len(header) {
			return nil, fmt.Errorf("line %d has %d fields, header has %d", line, len(record), len(header))
		}

		mt, err := strconv.Atoi(record[layout.mutType])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad mut_type %q: %w", line, record[layout.mutType], err)
		}
		t.MutType = append(t.MutType, mt)

		if hasCoords {
			pos, err := strconv.ParseInt(record[layout.pos], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad start %q: %w", line, record[layout.pos], err)
			}
			t.Chrom = append(t.Chrom, record[layout.chrom])
			t.Pos = append(t.Pos, pos)
		}

		for d := 0; d < flank; d++ {
			t.Up[d] = append(t.Up[d], record[layout.up[d]])
			t.Down[d] = append(t.Down[d], record[layout.down[d]])
		}

		for _, col := range layout.probs {
			p, err := strconv.ParseFloat(record[col], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad probability %q: %w", line, record[col], err)
			}
			probData = append(probData, p)
		}
	}

	if len(t.MutType) == 0 {
		return nil, fmt.Errorf("table has no data rows")
	}
	t.Probs = mat.NewDense(len(t.MutType), classes, probData)
	return t, nil
}
