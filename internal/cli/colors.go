package cli

import "github.com/fatih/color"

// Colors are dropped automatically when stdout is not a terminal.
var (
	titleColor   = color.New(color.FgHiCyan, color.Bold)
	successColor = color.New(color.FgHiGreen)
	warnColor    = color.New(color.FgHiYellow)
	fieldColor   = color.New(color.FgHiMagenta)
)
