//go:build windows
// +build windows

package logger

import (
	"os"
	"strings"
	"syscall"
	"unsafe"
)

const SupportsColorEscapes = true

var kernel32 = syscall.NewLazyDLL("kernel32.dll")
var getConsoleMode = kernel32.NewProc("GetConsoleMode")
var setConsoleTextAttribute = kernel32.NewProc("SetConsoleTextAttribute")
var getConsoleScreenBufferInfo = kernel32.NewProc("GetConsoleScreenBufferInfo")

type consoleScreenBufferInfo struct {
	dwSizeX              int16
	dwSizeY              int16
	dwCursorPositionX    int16
	dwCursorPositionY    int16
	wAttributes          uint16
	srWindowLeft         int16
	srWindowTop          int16
	srWindowRight        int16
	srWindowBottom       int16
	dwMaximumWindowSizeX int16
	dwMaximumWindowSizeY int16
}

func GetTerminalInfo(file *os.File) TerminalInfo {
	fd := file.Fd()

	// Is this file descriptor a terminal?
	var unused uint32
	isTTY, _, _ := syscall.Syscall(getConsoleMode.Addr(), 2, fd, uintptr(unsafe.Pointer(&unused)), 0)

	// Get the width of the window
	var info consoleScreenBufferInfo
	syscall.Syscall(getConsoleScreenBufferInfo.Addr(), 2, fd, uintptr(unsafe.Pointer(&info)), 0)

	return TerminalInfo{
		IsTTY:           isTTY != 0,
		Width:           int(info.dwSizeX) - 1,
		Height:          int(info.dwSizeY) - 1,
		UseColorEscapes: isTTY != 0 && !hasNoColorEnvironmentVariable(),
	}
}

// The console on older versions of Windows doesn't understand escape codes,
// so each one is swapped for a call that changes the text attributes
func writeStringWithColor(file *os.File, text string) {
	const FOREGROUND_BLUE = 1
	const FOREGROUND_GREEN = 2
	const FOREGROUND_RED = 4
	const FOREGROUND_INTENSITY = 8
	const FOREGROUND_WHITE = FOREGROUND_RED | FOREGROUND_GREEN | FOREGROUND_BLUE

	escapes := []struct {
		text       string
		attributes uintptr
	}{
		{TerminalColors.Reset, FOREGROUND_WHITE},
		{TerminalColors.Bold, FOREGROUND_WHITE | FOREGROUND_INTENSITY},
		{TerminalColors.Dim, FOREGROUND_WHITE},
		{TerminalColors.Underline, FOREGROUND_WHITE},
		{TerminalColors.Red, FOREGROUND_RED},
		{TerminalColors.Green, FOREGROUND_GREEN},
		{TerminalColors.Blue, FOREGROUND_BLUE},
		{TerminalColors.Cyan, FOREGROUND_GREEN | FOREGROUND_BLUE},
		{TerminalColors.Magenta, FOREGROUND_RED | FOREGROUND_BLUE},
		{TerminalColors.Yellow, FOREGROUND_RED | FOREGROUND_GREEN},
	}

	fd := file.Fd()
	i := 0

	for i < len(text) {
		if text[i] != 033 {
			i++
			continue
		}

		matched := false
		for _, escape := range escapes {
			if strings.HasPrefix(text[i:], escape.text) {
				file.WriteString(text[:i])
				text = text[i+len(escape.text):]
				i = 0
				setConsoleTextAttribute.Call(fd, escape.attributes)
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}

	file.WriteString(text)
}
