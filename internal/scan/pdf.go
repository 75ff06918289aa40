package scan

import "strings"

// pdfActiveObjects are PDF dictionary keys that attach behavior to a
// document. Citizen-submitted PDFs have no business carrying any of them,
// so a single occurrence is an unconditional reject.
var pdfActiveObjects = []string{
	"/JavaScript",
	"/JS",
	"/OpenAction",
	"/Launch",
	"/AA",
	"/URI",
	"/EmbeddedFile",
	"/RichMedia",
	"/XFA",
}

// pdfScriptPrimitives catch script payloads smuggled into object streams
// without the canonical dictionary keys.
var pdfScriptPrimitives = []string{
	"eval(",
	"unescape(",
	"String.fromCharCode(",
	"<script",
}

// InspectPDF scans a PDF byte-for-byte for interactivity objects and
// embedded script primitives. The bytes are viewed as Latin-1 text (a
// straight byte-to-rune widening) so object stream structure survives
// intact; no UTF-8 decoding is applied.
func InspectPDF(data []byte) []string {
	text := latin1(data)

	var found []string
	for _, obj := range pdfActiveObjects {
		if strings.Contains(text, obj) {
			found = append(found, obj)
		}
	}
	for _, prim := range pdfScriptPrimitives {
		if strings.Contains(text, prim) {
			found = append(found, prim)
		}
	}
	return found
}

// latin1 widens each byte to the rune with the same value. Unlike
// string(data), which is byte-preserving but treated as UTF-8 by the
// strings package only for valid sequences, this mapping is explicit and
// loses nothing.
func latin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
