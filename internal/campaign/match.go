package campaign

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/kalambet/adcraft/internal/storage"
	"github.com/kalambet/adcraft/internal/tagger"
)

// Match returns the images whose tags occur in text as whole words,
// case-insensitively. Tags are visited in first-seen order and every image
// carrying a matching tag is appended, so an image with two matching tags
// appears twice.
func Match(text string, tagged []tagger.ImageTagSet) []storage.Image {
	type entry struct {
		tag    string
		images []storage.Image
	}
	var order []*entry
	index := make(map[string]*entry)
	for _, set := range tagged {
		for _, tag := range set.Tags {
			if tag == "" {
				continue
			}
			e, ok := index[tag]
			if !ok {
				e = &entry{tag: tag}
				index[tag] = e
				order = append(order, e)
			}
			e.images = append(e.images, storage.Image{URL: set.ImageURL, Description: tag})
		}
	}

	text = norm.NFC.String(text)
	matched := []storage.Image{}
	for _, e := range order {
		if containsWord(text, norm.NFC.String(e.tag)) {
			matched = append(matched, e.images...)
		}
	}
	return matched
}

// containsWord reports whether word occurs in text, ignoring case, with a
// word boundary on both sides. Boundaries are Unicode-aware: letters,
// numbers and underscore are word characters.
func containsWord(text, word string) bool {
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(word))
	if err != nil {
		return false
	}
	for pos := 0; pos <= len(text); {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			return false
		}
		start, end := pos+loc[0], pos+loc[1]
		if boundary(text, start) && boundary(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			return false
		}
		pos = start + size
	}
	return false
}

// boundary reports whether i sits between a word and a non-word character
// (treating both ends of text as non-word).
func boundary(text string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = isWordRune(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
