package scan

import (
	"regexp"

	"github.com/filegate-project/filegate/internal/core"
)

// Pattern tiers. Tier 1 patterns are rejections on their own; tier 2 and 3
// matches are weak alone but strong in combination (see comboPairs).
const (
	TierExec        = 1 // direct execution / dangerous primitives
	TierSuperglobal = 2 // attacker-controlled input sources
	TierObfuscation = 3 // encoding and obfuscation idioms
)

func compilePatterns() []Pattern {
	return []Pattern{
		// Tier 1 — direct dangerous calls
		{Name: "eval", Tier: TierExec, Severity: core.RiskCritical,
			Regex: regexp.MustCompile(`(?i)\beval\s*\(`)},
		{Name: "assert", Tier: TierExec, Severity: core.RiskCritical,
			Regex: regexp.MustCompile(`(?i)\bassert\s*\(`)},
		{Name: "exec", Tier: TierExec, Severity: core.RiskCritical,
			Regex: regexp.MustCompile(`(?i)\b(exec|shell_exec|system|passthru|popen|proc_open|pcntl_exec)\s*\(`)},
		{Name: "create_function", Tier: TierExec, Severity: core.RiskCritical,
			Regex: regexp.MustCompile(`(?i)\bcreate_function\s*\(`)},
		{Name: "preg_replace_e", Tier: TierExec, Severity: core.RiskCritical,
			Regex: regexp.MustCompile(`(?i)preg_replace\s*\(\s*['"][^'"]*/[a-z]*e[a-z]*['"]`)},
		{Name: "file_write", Tier: TierExec, Severity: core.RiskHigh,
			Regex: regexp.MustCompile(`(?i)\b(fwrite|fputs|file_put_contents|move_uploaded_file|copy|rename|unlink)\s*\(`)},
		{Name: "file_read", Tier: TierExec, Severity: core.RiskMedium,
			Regex: regexp.MustCompile(`(?i)\b(file_get_contents|fopen|readfile|fread|include|include_once|require|require_once)\s*\(`)},
		{Name: "network", Tier: TierExec, Severity: core.RiskHigh,
			Regex: regexp.MustCompile(`(?i)\b(fsockopen|pfsockopen|curl_exec|curl_init|stream_socket_client|socket_create)\s*\(`)},
		{Name: "script_tag", Tier: TierExec, Severity: core.RiskHigh,
			Regex: regexp.MustCompile(`(?i)<\s*script[^>]*>`)},
		{Name: "php_open_tag", Tier: TierExec, Severity: core.RiskHigh,
			Regex: regexp.MustCompile(`<\?(php|=)`)},

		// Tier 2 — superglobal / variable-injection indicators
		{Name: "superglobal_get", Tier: TierSuperglobal, Severity: core.RiskMedium,
			Regex: regexp.MustCompile(`\$_GET\s*\[`)},
		{Name: "superglobal_post", Tier: TierSuperglobal, Severity: core.RiskMedium,
			Regex: regexp.MustCompile(`\$_POST\s*\[`)},
		{Name: "superglobal_request", Tier: TierSuperglobal, Severity: core.RiskMedium,
			Regex: regexp.MustCompile(`\$_REQUEST\s*\[`)},
		{Name: "superglobal_cookie", Tier: TierSuperglobal, Severity: core.RiskMedium,
			Regex: regexp.MustCompile(`\$_COOKIE\s*\[`)},
		{Name: "superglobal_server", Tier: TierSuperglobal, Severity: core.RiskLow,
			Regex: regexp.MustCompile(`\$_SERVER\s*\[`)},
		{Name: "superglobal_files", Tier: TierSuperglobal, Severity: core.RiskMedium,
			Regex: regexp.MustCompile(`\$_FILES\s*\[`)},
		{Name: "variable_function", Tier: TierSuperglobal, Severity: core.RiskMedium,
			Regex: regexp.MustCompile(`\$\w+\s*\(\s*\$_(GET|POST|REQUEST|COOKIE)`)},

		// Tier 3 — obfuscation idioms
		{Name: "base64_decode", Tier: TierObfuscation, Severity: core.RiskMedium,
			Regex: regexp.MustCompile(`(?i)\bbase64_decode\s*\(`)},
		{Name: "gzinflate", Tier: TierObfuscation, Severity: core.RiskMedium,
			Regex: regexp.MustCompile(`(?i)\b(gzinflate|gzuncompress|gzdecode)\s*\(`)},
		{Name: "str_rot13", Tier: TierObfuscation, Severity: core.RiskMedium,
			Regex: regexp.MustCompile(`(?i)\bstr_rot13\s*\(`)},
		{Name: "chr_chain", Tier: TierObfuscation, Severity: core.RiskMedium,
			Regex: regexp.MustCompile(`(?i)(chr\s*\(\s*\d+\s*\)\s*\.\s*){3,}`)},
		{Name: "hex_escape_run", Tier: TierObfuscation, Severity: core.RiskMedium,
			Regex: regexp.MustCompile(`(\\x[0-9a-fA-F]{2}){8,}`)},
		{Name: "char_code_reconstruct", Tier: TierObfuscation, Severity: core.RiskMedium,
			Regex: regexp.MustCompile(`(?i)String\.fromCharCode\s*\(`)},
	}
}

// comboPairs are pattern pairs that together mark a backdoor even when
// neither member crosses the rejection threshold alone. Backdoors
// characteristically co-locate an execution primitive with an
// attacker-controlled input source or a decoding stage.
var comboPairs = []struct {
	First  string
	Second string
	Name   string
}{
	{"eval", "base64_decode", "eval_of_base64"},
	{"eval", "gzinflate", "eval_of_gzinflate"},
	{"eval", "str_rot13", "eval_of_rot13"},
	{"assert", "superglobal_request", "assert_of_request"},
	{"exec", "superglobal_get", "exec_of_get"},
	{"exec", "superglobal_post", "exec_of_post"},
	{"file_write", "superglobal_files", "dropper_via_upload"},
	{"network", "superglobal_get", "backconnect_via_get"},
}
