package objectkey

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: "file"},
		{name: "vietnamese exam title", input: "Đề Thi Toán 12.pdf", expected: "de-thi-toan-12.pdf"},
		{name: "vietnamese uppercase horn letters", input: "ƯỚC MƠ.jpg", expected: "uoc-mo.jpg"},
		{name: "underscores and double spaces", input: "My_File  Name.PNG", expected: "my-file-name.PNG"},
		{name: "forbidden characters", input: "Báo cáo: Q1/2024.docx", expected: "bao-cao-q12024.docx"},
		{name: "only forbidden characters", input: "???.txt", expected: "file.txt"},
		{name: "surrounding hyphens", input: "-a-.txt", expected: "a.txt"},
		{name: "no extension", input: "README", expected: "readme"},
		{name: "leading dot is not an extension", input: ".hidden", expected: ".hidden"},
		{name: "dots only", input: "...", expected: "..."},
		{name: "non latin script", input: "日本語.txt", expected: "file.txt"},
		{name: "multiple dots keep last extension", input: "archive.v2.tar.gz", expected: "archive.v2.tar.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.expected, Slugify(tt.input))
			})
		})
	}
}

func TestSlugifyTruncation(t *testing.T) {
	input := strings.Repeat("a", 99) + " b.txt"

	result := Slugify(input)

	assert.Equal(t, strings.Repeat("a", 99)+".txt", result)
}

func TestSlugifyBodyShape(t *testing.T) {
	body := regexp.MustCompile(`^[a-z0-9.\-]+$`)
	inputs := []string{
		"Giáo trình Lập trình Go (bản 2).pdf",
		"  __weird__ name__ .zip",
		strings.Repeat("Tiếng Việt ", 30) + ".mp4",
		"<script>alert(1)</script>.html",
		"C:\\Users\\me\\bài tập.docx",
	}

	for _, input := range inputs {
		result := Slugify(input)
		ext := ""
		if dot := strings.LastIndex(input, "."); dot > 0 {
			ext = input[dot:]
		}
		assert.True(t, strings.HasSuffix(result, ext), "extension must be preserved for %q", input)

		base := strings.TrimSuffix(result, ext)
		assert.Regexp(t, body, base, "input %q", input)
		assert.LessOrEqual(t, len(base), maxSlugLength, "input %q", input)
	}
}

func TestSlugifyIdempotent(t *testing.T) {
	inputs := []string{
		"Đề Thi Toán 12.pdf",
		"My_File  Name.png",
		strings.Repeat("Học ", 40) + ".txt",
		"README",
	}

	for _, input := range inputs {
		once := Slugify(input)
		assert.Equal(t, once, Slugify(once), "input %q", input)
	}
}
