package journal

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"loganalyzer/internal/domain"
)

// ReadEntries parses a log file back into entries. Lines that do not start
// with a timestamp belong to the previous entry. A missing file has no
// entries.
func ReadEntries(path string) ([]domain.LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []domain.LogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if t, msg, ok := parseHeader(line); ok {
			entries = append(entries, domain.LogEntry{Time: t, Message: msg})
			continue
		}
		if len(entries) == 0 {
			// Content written before the first entry, e.g. a plain log file.
			entries = append(entries, domain.LogEntry{Message: line})
			continue
		}
		last := &entries[len(entries)-1]
		last.Message += "\n" + line
	}
	return entries, scanner.Err()
}

func parseHeader(line string) (time.Time, string, bool) {
	if len(line) < len(TimeLayout)+3 || line[0] != '[' || line[len(TimeLayout)+1] != ']' {
		return time.Time{}, "", false
	}
	t, err := time.ParseInLocation(TimeLayout, line[1:len(TimeLayout)+1], time.Local)
	if err != nil {
		return time.Time{}, "", false
	}
	return t, strings.TrimPrefix(line[len(TimeLayout)+2:], " "), true
}
