package fetch

import "strings"

// BlockType describes the kind of anti-bot page detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// DetectBlock checks rendered page text for signs that the extraction
// service saw an anti-bot interstitial instead of the real page.
func DetectBlock(content string) (bool, BlockType) {
	lower := strings.ToLower(content)

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "captcha") && len(content) < 4000 {
		return true, BlockCaptcha
	}

	// A short page asking for JavaScript is an unrendered app shell.
	if len(content) < 2000 &&
		(strings.Contains(lower, "enable javascript") || strings.Contains(lower, "requires javascript")) {
		return true, BlockJSShell
	}

	return false, BlockNone
}
