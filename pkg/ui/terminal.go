package ui

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
)

// ASCIILogo is printed at startup
const ASCIILogo = `
    ╔════════════════════════════════════════════════════════╗
    ║  ┳┓┏┓┏┓┓┏┏┓┳┓┓┏┏┓┏┓┏┳┓                                  ║
    ║  ┃┃┃┃┃ ┣┫┣┫┣┫┃┃┣ ┗┓ ┃                                   ║
    ║  ┻┛┗┛┗┛┛┗┛┗┛┗┗┛┗┛┗┛ ┻   catalog document harvester     ║
    ╚════════════════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize(text.FgCyan)
	Yellow  = colorize(text.FgYellow)
	Red     = colorize(text.FgRed)
	Green   = colorize(text.FgGreen)
	Magenta = colorize(text.FgMagenta)
	Dim     = colorize(text.Faint)
)

func colorize(c text.Color) func(string) string {
	colors := text.Colors{c}
	return func(s string) string {
		return colors.Sprint(s)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	fmt.Print(Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(Red(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Println(Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(Yellow(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Yellow(msg))
	}
}
