package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBySniffAcceptsPlainFiles(t *testing.T) {
	mime, err := ValidateBySniff("report.pdf", []byte("%PDF-1.7 lorem ipsum"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mime)
}

func TestValidateBySniffBlocksExecutableExtensions(t *testing.T) {
	for _, name := range []string{"run.exe", "run.sh", "page.svg", "app.js"} {
		_, err := ValidateBySniff(name, []byte("data"))
		assert.Error(t, err, name)
	}
}

func TestValidateBySniffBlocksHTMLContent(t *testing.T) {
	_, err := ValidateBySniff("innocent.txt", []byte("<!DOCTYPE html><html><body>x</body></html>"))
	assert.Error(t, err)
}

func TestValidateBySniffHonorsAllowedList(t *testing.T) {
	t.Setenv("UPLOAD_ALLOWED_EXTENSIONS", ".pdf, png")

	_, err := ValidateBySniff("report.pdf", []byte("%PDF-1.7"))
	assert.NoError(t, err)

	_, err = ValidateBySniff("photo.png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	assert.NoError(t, err)

	_, err = ValidateBySniff("notes.txt", []byte("plain text"))
	assert.Error(t, err)
}
