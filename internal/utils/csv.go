package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cryptoSignalAgent/internal/domain"
)

var barsHeader = []string{"open_time", "symbol", "interval", "open", "high", "low", "close", "volume"}

// WriteBars writes bars as CSV rows, oldest first, preceded by a header.
func WriteBars(w io.Writer, symbol, interval string, bars []domain.Bar) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(barsHeader); err != nil {
		return err
	}
	for _, b := range bars {
		err := writer.Write([]string{
			b.Time.UTC().Format(time.RFC3339),
			symbol,
			interval,
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteBarsToCSV writes bars to filename, creating its directory if needed.
func WriteBarsToCSV(filename, symbol, interval string, bars []domain.Bar) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteBars(file, symbol, interval, bars); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
