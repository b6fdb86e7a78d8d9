package theme

import "testing"

func TestDetectUnicodeSupport(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"forced ascii", map[string]string{"DOCCHAT_ASCII_SYMBOLS": "1", "LANG": "en_US.UTF-8"}, false},
		{"utf8 locale", map[string]string{"LANG": "es_ES.UTF-8"}, true},
		{"posix locale", map[string]string{"LC_ALL": "C"}, false},
		{"unset", map[string]string{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"DOCCHAT_ASCII_SYMBOLS", "LC_ALL", "LC_CTYPE", "LANG"} {
				t.Setenv(k, tt.env[k])
			}
			if got := DetectUnicodeSupport(); got != tt.want {
				t.Errorf("DetectUnicodeSupport() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInitSymbolsASCII(t *testing.T) {
	t.Cleanup(InitSymbols)
	t.Setenv("DOCCHAT_ASCII_SYMBOLS", "true")
	InitSymbols()

	if SymbolSuccess != "[OK]" || SymbolDoc != "#" || SymbolEllipsis != "..." {
		t.Errorf("ascii symbols not applied: %q %q %q", SymbolSuccess, SymbolDoc, SymbolEllipsis)
	}
}
