package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReadSeries reads whitespace or comma separated decimals, skipping '#' comments.
func ReadSeries(r io.Reader) ([]float64, error) {
	var values []float64
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		for _, field := range fields {
			v, err := parseFloat(field)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			values = append(values, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading series: %w", err)
	}
	return values, nil
}
