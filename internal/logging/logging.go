package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// sessionStampLayout names log files by session start so runs never clobber
// each other.
const sessionStampLayout = "20060102_150405"

// LogFilePath returns the session log file path under logsDir.
func LogFilePath(logsDir, extensionName string, sessionStart time.Time) string {
	name := fmt.Sprintf("%s.%s.log", extensionName, sessionStart.Format(sessionStampLayout))
	return filepath.Join(logsDir, name)
}
