package objectkey

import (
	"regexp"
	"strings"
)

const (
	fallbackName   = "file"
	maxSlugLength  = 100
	forbiddenChars = "<>:\"/\\|?*"
)

var (
	multiHyphen   = regexp.MustCompile(`-+`)
	disallowedRun = regexp.MustCompile(`[^a-z0-9.\-]`)
)

// vietnamese maps every accented Vietnamese letter (both cases) to its ASCII base letter.
var vietnamese = newTransliterator(map[string]string{
	"a": "àáạảãâầấậẩẫăằắặẳẵ",
	"e": "èéẹẻẽêềếệểễ",
	"i": "ìíịỉĩ",
	"o": "òóọỏõôồốộổỗơờớợởỡ",
	"u": "ùúụủũưừứựửữ",
	"y": "ỳýỵỷỹ",
	"d": "đ",
	"A": "ÀÁẠẢÃÂẦẤẬẨẪĂẰẮẶẲẴ",
	"E": "ÈÉẸẺẼÊỀẾỆỂỄ",
	"I": "ÌÍỊỈĨ",
	"O": "ÒÓỌỎÕÔỒỐỘỔỖƠỜỚỢỞỠ",
	"U": "ÙÚỤỦŨƯỪỨỰỬỮ",
	"Y": "ỲÝỴỶỸ",
	"D": "Đ",
})

func newTransliterator(groups map[string]string) *strings.Replacer {
	var pairs []string
	for base, accented := range groups {
		for _, r := range accented {
			pairs = append(pairs, string(r), base)
		}
	}
	return strings.NewReplacer(pairs...)
}

// Slugify turns a user supplied filename into a URL and filesystem safe name.
// The extension (including its dot) is kept verbatim; the base name is lowercased,
// transliterated, restricted to [a-z0-9.-] and capped at 100 characters.
//
// Example:
//
//	Slugify("Đề Thi Toán 12.pdf") // "de-thi-toan-12.pdf"
func Slugify(name string) string {
	if name == "" {
		return fallbackName
	}

	base, ext := name, ""
	if dot := strings.LastIndex(name, "."); dot > 0 {
		base, ext = name[:dot], name[dot:]
	}

	s := strings.ToLower(base)
	s = vietnamese.Replace(s)
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	s = multiHyphen.ReplaceAllString(s, "-")
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenChars, r) {
			return -1
		}
		return r
	}, s)
	s = disallowedRun.ReplaceAllString(s, "")
	s = strings.Trim(s, "-")

	if s == "" {
		s = fallbackName
	}
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}

	return s + ext
}
