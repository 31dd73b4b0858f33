//go:build !darwin && !linux && !windows
// +build !darwin,!linux,!windows

package logger

import "os"

const SupportsColorEscapes = false

// There's no portable way to ask for the window size here. A character
// device is the best guess at a terminal.
func GetTerminalInfo(file *os.File) TerminalInfo {
	stat, err := file.Stat()
	if err != nil {
		return TerminalInfo{}
	}
	return TerminalInfo{IsTTY: stat.Mode()&os.ModeCharDevice != 0}
}

func writeStringWithColor(file *os.File, text string) {
	file.WriteString(text)
}
