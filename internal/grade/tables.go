package grade

import "fmt"

// Route grades. Keys and values are lower case.
var ydsToFrench = map[string]string{
	"5.5":   "4a",
	"5.6":   "4b",
	"5.7":   "4c",
	"5.8":   "5a",
	"5.9":   "5b",
	"5.10a": "5c",
	"5.10b": "6a",
	"5.10c": "6a+",
	"5.10d": "6b",
	"5.11a": "6b+",
	"5.11b": "6c",
	"5.11c": "6c+",
	"5.11d": "7a",
	"5.12a": "7a+",
	"5.12b": "7b",
	"5.12c": "7b+",
	"5.12d": "7c",
	"5.13a": "7c+",
	"5.13b": "8a",
	"5.13c": "8a+",
	"5.13d": "8b",
	"5.14a": "8b+",
	"5.14b": "8c",
	"5.14c": "8c+",
	"5.14d": "9a",
	"5.15a": "9a+",
	"5.15b": "9b",
	"5.15c": "9b+",
	"5.15d": "9c",
}

// Boulder grades. Keys and values are upper case.
var vToFont = map[string]string{
	"VB":  "3",
	"V0":  "4",
	"V1":  "5",
	"V2":  "5+",
	"V3":  "6A",
	"V4":  "6B",
	"V5":  "6C",
	"V6":  "7A",
	"V7":  "7A+",
	"V8":  "7B",
	"V9":  "7C",
	"V10": "7C+",
	"V11": "8A",
	"V12": "8A+",
	"V13": "8B",
	"V14": "8B+",
	"V15": "8C",
	"V16": "8C+",
	"V17": "9A",
}

var (
	frenchToYDS = invert(ydsToFrench)
	fontToV     = invert(vToFont)
)

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if prev, dup := out[v]; dup {
			panic(fmt.Sprintf("grade: %q maps back to both %q and %q", v, prev, k))
		}
		out[v] = k
	}
	return out
}
