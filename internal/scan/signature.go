package scan

import (
	"encoding/hex"
	"strings"
)

// executableMagic maps hex-encoded magic numbers of executable and archive
// formats to a label used in audit detail. The generic ZIP signature
// (504b0304) is deliberately absent: DOCX/PPTX/XLSX are ZIP containers and
// would false-positive on every modern office document.
var executableMagic = map[string]string{
	"4d5a":         "PE/MZ executable",
	"7f454c46":     "ELF binary",
	"cafebabe":     "Java class / Mach-O fat binary",
	"feedface":     "Mach-O 32-bit",
	"feedfacf":     "Mach-O 64-bit",
	"cefaedfe":     "Mach-O 32-bit (swapped)",
	"cffaedfe":     "Mach-O 64-bit (swapped)",
	"526172211a07": "RAR archive",
	"377abcaf271c": "7-Zip archive",
	"23212f":       "script with shebang (#!/)",
}

// webshellTokens are hex encodings of backdoor fragments. Matching on the
// hex form catches payloads that never pass through text decoding — a file
// read as binary still reveals these byte sequences.
var webshellTokens = map[string]string{
	hex.EncodeToString([]byte("<?php")):          "<?php",
	hex.EncodeToString([]byte("eval(")):          "eval(",
	hex.EncodeToString([]byte("assert(")):        "assert(",
	hex.EncodeToString([]byte("shell_exec(")):    "shell_exec(",
	hex.EncodeToString([]byte("passthru(")):      "passthru(",
	hex.EncodeToString([]byte("base64_decode(")): "base64_decode(",
	hex.EncodeToString([]byte("$_GET")):          "$_GET",
	hex.EncodeToString([]byte("$_POST")):         "$_POST",
	hex.EncodeToString([]byte("$_REQUEST")):      "$_REQUEST",
	hex.EncodeToString([]byte("<%eval")):         "<%eval",
	hex.EncodeToString([]byte("Runtime.getRuntime()")): "Runtime.getRuntime()",
}

// HasExecutableSignature reports whether data starts with a known
// executable or denied-archive magic number. The match is anchored at
// offset zero: short magics like MZ occur freely inside legitimate
// compressed data, so a substring search would reject valid documents.
func HasExecutableSignature(data []byte) (bool, string) {
	prefix := lowerHex(data, 8)
	for magic, label := range executableMagic {
		if strings.HasPrefix(prefix, magic) {
			return true, label
		}
	}
	return false, ""
}

// HasWebshellSignature reports whether data contains a hex-encoded backdoor
// token anywhere in the buffer. Tokens are at least five bytes of ASCII, so
// accidental collisions in binary content are vanishingly rare.
func HasWebshellSignature(data []byte) (bool, string) {
	haystack := hex.EncodeToString(data)
	for token, label := range webshellTokens {
		if strings.Contains(haystack, token) {
			return true, label
		}
	}
	return false, ""
}

// lowerHex returns the lowercase hex encoding of the first n bytes of data.
func lowerHex(data []byte, n int) string {
	if len(data) > n {
		data = data[:n]
	}
	return hex.EncodeToString(data)
}
