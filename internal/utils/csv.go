package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"stockSignalBot/internal/domain"
)

// WriteBarsToCSV writes recorded bars in the format ReadBarsFromCSV accepts,
// so captured sessions can be replayed later.
func WriteBarsToCSV(bars []*domain.Bar, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"timestamp", "symbol", "open", "high", "low", "close", "volume"})

	for _, b := range bars {
		writer.Write([]string{
			b.Timestamp.Format(time.RFC3339),
			b.Symbol,
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		})
	}
	return writer.Error()
}

// ReadBarsFromCSV reads bars written by WriteBarsToCSV. Rows are returned in
// file order; callers that need ordering guarantees sort or validate
// themselves.
func ReadBarsFromCSV(filename string) ([]*domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", filename, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"timestamp", "symbol", "open", "high", "low", "close", "volume"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%s is missing column %q", filename, required)
		}
	}

	var bars []*domain.Bar
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s line %d: %w", filename, line, err)
		}

		ts, err := time.Parse(time.RFC3339, record[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: parsing timestamp: %w", filename, line, err)
		}
		fields := make(map[string]float64, 5)
		for _, name := range []string{"open", "high", "low", "close", "volume"} {
			v, err := strconv.ParseFloat(record[col[name]], 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: parsing %s: %w", filename, line, name, err)
			}
			fields[name] = v
		}

		bars = append(bars, &domain.Bar{
			Symbol:    record[col["symbol"]],
			Timestamp: ts,
			Open:      fields["open"],
			High:      fields["high"],
			Low:       fields["low"],
			Close:     fields["close"],
			Volume:    fields["volume"],
		})
	}
	return bars, nil
}

// WriteSignalsToCSV exports stored signals for spreadsheet inspection.
func WriteSignalsToCSV(signals []*domain.Signal, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"timestamp", "symbol", "classification", "strength", "reasons", "close", "rsi", "macd", "run_id"})

	for _, s := range signals {
		writer.Write([]string{
			s.Timestamp.Format(time.RFC3339),
			s.Symbol,
			string(s.Classification),
			strconv.FormatFloat(s.Strength, 'f', 2, 64),
			strings.Join(s.Reasons, "; "),
			strconv.FormatFloat(s.Basis.Close, 'f', -1, 64),
			strconv.FormatFloat(s.Basis.RSI, 'f', 2, 64),
			strconv.FormatFloat(s.Basis.MACD, 'f', -1, 64),
			s.RunID,
		})
	}
	return writer.Error()
}
