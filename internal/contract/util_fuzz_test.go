package contract

import "testing"

// FuzzParseRawValue fuzzes ParseRawValue with arbitrary command line input.
func FuzzParseRawValue(f *testing.F) {
	seeds := []string{"true", "no", "7", "-3.5", `["a"]`, `{"average":9,"count":2}`, "null", "", "[", "organic"}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(_ *testing.T, s string) {
		_ = ParseRawValue(s)
	})
}
