package util

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"paper.pdf", "paper.pdf", false},
		{"../../etc/passwd", "passwd", false},
		{`C:\Users\ada\slides.pptx`, "slides.pptx", false},
		{"", "", true},
		{"..", "", true},
		{"dir/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := BaseName(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinWithin(t *testing.T) {
	base := t.TempDir()

	p, err := JoinWithin(base, "ab12cd34", "file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "ab12cd34", "file.txt"), p)

	_, err = JoinWithin(base, "ab12cd34", "..", "..", "x")
	assert.ErrorIs(t, err, ErrPathEscape)

	assert.ErrorIs(t, WithinBase(filepath.Join(base, "ab"), filepath.Join(base, "abc")), ErrPathEscape)
}

func TestASCIIFilename(t *testing.T) {
	assert.Equal(t, "Resume_final.pdf", ASCIIFilename("Résumé final.pdf"))
	assert.Equal(t, "Privet.txt", ASCIIFilename("Привет.txt"))
	assert.Equal(t, "download", ASCIIFilename("???"))
}

func TestContentDisposition(t *testing.T) {
	h := ContentDisposition("Résumé.pdf")
	assert.True(t, strings.HasPrefix(h, `attachment; filename="Resume.pdf"`))
	assert.Contains(t, h, "filename*=UTF-8''R%C3%A9sum%C3%A9.pdf")
}

func TestDescribeUserAgent(t *testing.T) {
	assert.Equal(t, "unknown", DescribeUserAgent(""))

	desc := DescribeUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	assert.Contains(t, desc, "Safari")
	assert.Contains(t, desc, "(mobile)")
}
