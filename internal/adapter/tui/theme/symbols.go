package theme

import (
	"os"
	"strings"
)

// SymbolSet holds all UI symbols, allowing runtime switching between
// Unicode and ASCII fallback sets.
type SymbolSet struct {
	Success  string
	Error    string
	Warning  string
	Info     string
	Spinner  string
	ArrowR   string
	Bullet   string
	Ellipsis string
	Doc      string
	User     string
	Bot      string
}

var unicodeSymbols = SymbolSet{
	Success:  "\u2713", // ✓
	Error:    "\u2717", // ✗
	Warning:  "\u26A0", // ⚠
	Info:     "\u25CF", // ●
	Spinner:  "\u23F3", // ⏳
	ArrowR:   "\u2192", // →
	Bullet:   "\u2022", // •
	Ellipsis: "\u2026", // …
	Doc:      "\u00B6", // ¶
	User:     "You",
	Bot:      "Assistant",
}

var asciiSymbols = SymbolSet{
	Success:  "[OK]",
	Error:    "[ERR]",
	Warning:  "[!]",
	Info:     "[i]",
	Spinner:  "[...]",
	ArrowR:   "->",
	Bullet:   "*",
	Ellipsis: "...",
	Doc:      "#",
	User:     "You",
	Bot:      "Assistant",
}

// DetectUnicodeSupport reports whether the terminal likely renders Unicode.
// DOCCHAT_ASCII_SYMBOLS=1 forces ASCII; a POSIX/C locale without UTF-8 also does.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("DOCCHAT_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if val == "" {
			continue
		}
		if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
			return true
		}
		if val == "c" || val == "posix" {
			return false
		}
	}
	return true
}

// Symbols returns the active symbol set.
func Symbols() SymbolSet {
	if DetectUnicodeSupport() {
		return unicodeSymbols
	}
	return asciiSymbols
}

// InitSymbols sets the package-level Symbol* variables from Symbols().
// Called by init and again by tests that change the environment.
func InitSymbols() {
	set := Symbols()

	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolWarning = set.Warning
	SymbolInfo = set.Info
	SymbolSpinner = set.Spinner
	SymbolArrowR = set.ArrowR
	SymbolBullet = set.Bullet
	SymbolEllipsis = set.Ellipsis
	SymbolDoc = set.Doc
	SymbolUser = set.User
	SymbolBot = set.Bot
}

func init() {
	InitSymbols()
}
