package scan

import (
	"strings"

	"github.com/filegate-project/filegate/internal/core"
)

// deniedExtensions covers web-executable, script, OS-executable, archive,
// database/backup, and config extensions. Archives are denied even though
// they are common document formats: an archive can smuggle any of the other
// denied types past per-file inspection.
var deniedExtensions = map[string]bool{
	// web-executable
	"php": true, "php3": true, "php4": true, "php5": true, "php7": true,
	"phtml": true, "phar": true, "asp": true, "aspx": true, "jsp": true,
	"jspx": true, "cfm": true, "cgi": true,
	// script
	"pl": true, "py": true, "rb": true, "sh": true, "bash": true, "ps1": true,
	"vbs": true, "vbe": true, "js": true, "wsf": true, "hta": true,
	// OS-executable
	"exe": true, "dll": true, "com": true, "bat": true, "cmd": true,
	"scr": true, "pif": true, "msi": true, "cpl": true, "jar": true,
	"war": true, "apk": true,
	// archive
	"zip": true, "rar": true, "7z": true, "tar": true, "gz": true,
	"bz2": true, "xz": true, "cab": true, "iso": true,
	// database / backup
	"sql": true, "db": true, "sqlite": true, "mdb": true, "bak": true,
	"old": true, "swp": true,
	// config
	"ini": true, "conf": true, "cnf": true, "htaccess": true, "htpasswd": true,
	"env": true,
}

// suspiciousKeywords are filename fragments associated with known attack
// tooling. c99, r57, wso and b374k are widely circulated webshell families.
var suspiciousKeywords = []string{
	"shell", "backdoor", "webshell", "exploit", "payload", "trojan",
	"rootkit", "c99", "r57", "wso", "b374k", "bypass",
}

// ValidateFilename checks a declared filename against the deny rules and
// returns the rejection reason plus a server-side detail string, or
// ReasonNone when the name is acceptable. Checks run most-structural first:
// null bytes and traversal truncate or redirect server-side handling
// entirely, so they outrank extension analysis.
func ValidateFilename(name string) (core.ReasonCode, string) {
	if name == "" {
		return core.ReasonPathOrNullByte, "empty filename"
	}

	lower := strings.ToLower(name)

	// Null bytes, raw or percent-encoded, historically truncate extension
	// checks in downstream systems.
	if strings.ContainsRune(name, 0x00) || strings.Contains(lower, "%00") {
		return core.ReasonPathOrNullByte, "null byte in filename"
	}

	if strings.Contains(name, "..") ||
		strings.ContainsAny(name, "/\\") ||
		strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%2f") {
		return core.ReasonPathOrNullByte, "path traversal sequence in filename"
	}

	// Double extensions before the plain deny-list so that disguised names
	// like invoice.pdf.php surface as the disguise attempt they are. Any
	// name with three or more segments and a denied token anywhere past the
	// first classifies as DOUBLE_EXTENSION, even when only the final segment
	// is denied (a.b.php): the extra segment is what distinguishes it from a
	// straight shell.php upload.
	parts := strings.Split(lower, ".")
	if len(parts) > 2 {
		for _, seg := range parts[1:] {
			if deniedExtensions[seg] {
				return core.ReasonDoubleExtension, "double extension: " + lower
			}
		}
	}

	if len(parts) > 1 {
		if ext := parts[len(parts)-1]; deniedExtensions[ext] {
			return core.ReasonDangerousExtension, "denied extension: ." + ext
		}
	}

	// Keyword scan covers every segment except the final extension, so
	// my.backdoor.txt is caught the same as backdoor.txt.
	stem := lower
	if idx := strings.LastIndexByte(stem, '.'); idx >= 0 {
		stem = stem[:idx]
	}
	for _, kw := range suspiciousKeywords {
		if strings.Contains(stem, kw) {
			return core.ReasonSuspiciousKeyword, "suspicious keyword: " + kw
		}
	}

	return core.ReasonNone, ""
}
