package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/tiberius19/canvas-core/internal/pkg/env"
)

// blockedExt are extensions that are never accepted regardless of content.
var blockedExt = map[string]bool{
	".exe": true,
	".bat": true,
	".cmd": true,
	".com": true,
	".sh":  true,
	".php": true,
	".js":  true,
	// Note: SVG is intentionally excluded due to XSS risk without sanitization
	".svg": true,
}

// ValidateBySniff checks the provided filename (extension) and the first
// bytes (head) of an upload. Returns the detected mime or an error. An
// optional UPLOAD_ALLOWED_EXTENSIONS env (comma separated, e.g.
// ".pdf,.png,.jpg") narrows accepted types further.
func ValidateBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if blockedExt[ext] {
		return "", errors.New("this file type is not allowed")
	}

	if allowed := allowedExtensions(); len(allowed) > 0 && !allowed[ext] {
		return "", errors.New("this file type is not in the allowed list")
	}

	detected := http.DetectContentType(head)

	// Block obvious scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", errors.New("HTML content is not allowed")
	}
	if detected == "image/svg+xml" {
		// Block SVG until a sanitizer is available
		return "", errors.New("SVG is not supported for security reasons")
	}

	return detected, nil
}

func allowedExtensions() map[string]bool {
	raw := env.GetEnv("UPLOAD_ALLOWED_EXTENSIONS", "")
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	allowed := make(map[string]bool)
	for _, ext := range strings.Split(raw, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	return allowed
}
