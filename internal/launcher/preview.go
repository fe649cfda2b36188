package launcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// NoLogSelected is shown when the log path is empty.
const NoLogSelected = "<No log file selected>"

// Preview returns the text shown in the log pane for path. Failures are
// rendered as placeholders, never returned.
func Preview(path string) string {
	if strings.TrimSpace(path) == "" {
		return NoLogSelected
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Sprintf("<Log file not found: %s>", path)
	}
	if err != nil {
		return fmt.Sprintf("<Error reading log file: %v>", err)
	}
	return string(data)
}
