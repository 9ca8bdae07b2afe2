// Package ui prints colorized progress output for the command line.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const headerWidth = 60

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgWhite)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	stepColor    = color.New(color.FgBlue)
)

// Header prints a banner with the given title centered.
func Header(title string) {
	line := strings.Repeat("=", headerWidth)
	headerColor.Println(line)
	headerColor.Println(center(title, headerWidth))
	headerColor.Println(line)
}

// Step prints a numbered progress step.
func Step(current, total int, msg string) {
	stepColor.Printf("[%d/%d] %s\n", current, total, msg)
}

// Success prints a completed-action line.
func Success(msg string) {
	successColor.Printf("✓ %s\n", msg)
}

// Info prints a neutral informational line.
func Info(msg string) {
	infoColor.Println(msg)
}

// Warning prints a non-fatal problem.
func Warning(msg string) {
	warnColor.Printf("⚠ %s\n", msg)
}

// Error prints a failure line.
func Error(msg string) {
	errorColor.Printf("✗ %s\n", msg)
}

// BlueText prints msg in blue without any prefix.
func BlueText(msg string) {
	stepColor.Println(msg)
}

// YellowText prints msg in yellow without any prefix.
func YellowText(msg string) {
	warnColor.Println(msg)
}

// center left-pads text to sit in the middle of width. Text at or
// beyond width comes back unchanged.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	return fmt.Sprintf("%s%s", strings.Repeat(" ", (width-len(text))/2), text)
}
