package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExtractionGuide writes step-by-step instructions for copying a
// catalog's Cookie header out of a logged-in browser
func ShowCookieExtractionGuide(w io.Writer, catalogURL string) {
	if catalogURL == "" {
		catalogURL = "the catalog page"
	}

	rule := strings.Repeat("=", 80)
	lines := []string{
		rule,
		"🍪 CATALOG SESSION COOKIE",
		rule,
		"",
		"Catalogs behind a login need the session cookie of your browser.",
		"",
		"🌐 STEP 1: Open " + catalogURL + " in your browser and log in",
		"",
		"🔧 STEP 2: Open Developer Tools",
		"   • Chrome/Edge/Brave/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)",
		"",
		"📡 STEP 3: Go to the Network tab and reload the page",
		"",
		"🔑 STEP 4: Click the first request to the catalog host",
		"   1. Open 'Headers' and scroll to 'Request Headers'",
		"   2. Copy the whole value of the 'Cookie:' line",
		"      Example: session=abc123; XSRF-TOKEN=def456",
		"",
		"⚠️  The cookie grants access to your account. Never share it.",
		"   It is stored in the system keychain or an encrypted file.",
		rule,
		"",
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
