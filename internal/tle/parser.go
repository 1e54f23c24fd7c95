package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// lineLength is the fixed width of a TLE data line.
const lineLength = 69

// Parse reads 3-line NORAD TLE format from r and returns parsed entries.
// Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]TLEEntry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []TLEEntry
	for i := 0; i+2 < len(lines); {
		name := lines[i]
		line1 := lines[i+1]
		line2 := lines[i+2]

		// Validate line prefixes.
		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Try to find next valid triplet.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		if len(line1) != lineLength || len(line2) != lineLength {
			logger.Warn("skipping TLE entry with bad line length",
				"name", name, "line1_len", len(line1), "line2_len", len(line2))
			i += 3
			continue
		}

		if err := verifyChecksum(line1); err != nil {
			logger.Warn("skipping TLE entry", "name", name, "line", 1, "error", err)
			i += 3
			continue
		}
		if err := verifyChecksum(line2); err != nil {
			logger.Warn("skipping TLE entry", "name", name, "line", 2, "error", err)
			i += 3
			continue
		}

		// Extract NORAD ID from line1 cols 3-7 (0-indexed: 2..7).
		noradStr := strings.TrimSpace(line1[2:7])
		noradID, err := strconv.Atoi(noradStr)
		if err != nil {
			logger.Warn("skipping TLE entry with invalid NORAD ID", "norad_str", noradStr, "name", name)
			i += 3
			continue
		}

		// Extract epoch from line1 cols 19-32 (0-indexed: 18..32).
		epochStr := strings.TrimSpace(line1[18:32])
		epoch, err := parseEpoch(epochStr)
		if err != nil {
			logger.Warn("skipping TLE entry with invalid epoch", "epoch_str", epochStr, "name", name, "error", err)
			i += 3
			continue
		}

		entries = append(entries, TLEEntry{
			NORADID: noradID,
			Name:    strings.TrimSpace(name),
			Epoch:   epoch,
			Line1:   line1,
			Line2:   line2,
		})
		i += 3
	}

	return entries, nil
}

// LoadFile parses the TLE file at path into a Dataset.
func LoadFile(path string, logger *slog.Logger) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening TLE file: %w", err)
	}
	defer f.Close()

	entries, err := Parse(f, logger)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no valid TLE entries in %s", path)
	}

	ds := NewDataset(path, entries, time.Now())
	logger.Info("loaded TLE file",
		"path", path,
		"count", len(entries),
		"epoch_min", ds.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", ds.EpochRange.Max.Format(time.RFC3339),
	)
	return ds, nil
}

// Checksum returns the modulo-10 checksum of the first 68 columns of a TLE
// line: digits count their value, minus signs count one.
func Checksum(line string) int {
	sum := 0
	for _, c := range line[:min(len(line), lineLength-1)] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

func verifyChecksum(line string) error {
	want := line[lineLength-1]
	if want < '0' || want > '9' {
		return fmt.Errorf("checksum column %q is not a digit", want)
	}
	if got := Checksum(line); got != int(want-'0') {
		return fmt.Errorf("checksum mismatch: line says %c, computed %d", want, got)
	}
	return nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	yearStr := s[:2]
	dayStr := s[2:]

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", yearStr, err)
	}

	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(dayStr, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", dayStr, err)
	}
	if dayOfYear < 1 || dayOfYear >= 367 {
		return time.Time{}, fmt.Errorf("epoch day %v out of range", dayOfYear)
	}

	// dayOfYear is 1-based: day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))).Round(time.Microsecond), nil
}
