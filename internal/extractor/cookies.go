package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const cookiesFileName = "cookies.txt"

// MaterializeCookies writes Netscape cookie text to a private file under dir
// and returns its path. It returns "" when content is empty.
func MaterializeCookies(dir, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create cookies directory: %w", err)
	}

	// Env values commonly arrive with escaped newlines and tabs.
	if !strings.Contains(content, "\n") {
		content = strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(content)
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	path := filepath.Join(dir, cookiesFileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("write cookies file: %w", err)
	}

	return path, nil
}

// ResolveCookiesFile picks the cookie file for yt-dlp.
// An explicit file path wins over inline content.
func ResolveCookiesFile(explicitPath, content, dir string) (string, error) {
	if explicitPath != "" {
		info, err := os.Stat(explicitPath)
		if err != nil {
			return "", fmt.Errorf("cookies file: %w", err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("cookies file is a directory: %s", explicitPath)
		}
		return explicitPath, nil
	}
	return MaterializeCookies(dir, content)
}
