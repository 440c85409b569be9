package settings

import (
	"fmt"
	"strconv"
	"strings"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
)

// ParseStopWordArgument splits "[n] word" into a zero-based list index and a lowercased word.
// explicit is false when no list number was given.
func (c *StopWordsConfig) ParseStopWordArgument(raw string) (index int, word string, explicit bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "", false, fmt.Errorf("%w: word is required", ngerrors.ErrInvalidSettings)
	}
	remainder := raw
	fields := strings.SplitN(raw, " ", 2)
	if n, convErr := strconv.Atoi(fields[0]); convErr == nil {
		if n < 1 || n > len(c.Lists) {
			return 0, "", false, fmt.Errorf("%w: list number must be between 1 and %d", ngerrors.ErrInvalidSettings, len(c.Lists))
		}
		if len(fields) == 1 {
			return 0, "", false, fmt.Errorf("%w: word is required after list number", ngerrors.ErrInvalidSettings)
		}
		index = n - 1
		remainder = fields[1]
		explicit = true
	}
	word = strings.ToLower(strings.TrimSpace(remainder))
	if word == "" {
		return 0, "", false, fmt.Errorf("%w: word is required", ngerrors.ErrInvalidSettings)
	}
	return index, word, explicit, nil
}

// AddWord moves word into the list at index, dropping it from every other list.
func (c *StopWordsConfig) AddWord(index int, word string) bool {
	c.ensureLists()
	if index < 0 || index >= len(c.Lists) {
		return false
	}
	for i := range c.Lists {
		if i == index {
			continue
		}
		c.Lists[i].Words = removeWord(c.Lists[i].Words, word)
	}
	target := &c.Lists[index]
	added := !containsWord(target.Words, word)
	if added {
		target.Words = append(target.Words, word)
	}
	c.refreshEnabled()
	return added
}

// RemoveWord deletes word from the list at index, or from the first list holding it
// when explicit is false. It returns the list index affected, or -1.
func (c *StopWordsConfig) RemoveWord(index int, word string, explicit bool) int {
	c.ensureLists()
	removed := -1
	if explicit {
		if index >= 0 && index < len(c.Lists) && containsWord(c.Lists[index].Words, word) {
			c.Lists[index].Words = removeWord(c.Lists[index].Words, word)
			removed = index
		}
	} else {
		for i := range c.Lists {
			if containsWord(c.Lists[i].Words, word) {
				c.Lists[i].Words = removeWord(c.Lists[i].Words, word)
				removed = i
				break
			}
		}
	}
	c.refreshEnabled()
	return removed
}

func (c *StopWordsConfig) ensureLists() {
	s := ChatSettings{StopWords: *c}
	s.Normalize()
	*c = s.StopWords
}

func (c *StopWordsConfig) refreshEnabled() {
	c.Enabled = false
	for _, l := range c.Lists {
		if len(l.Words) > 0 {
			c.Enabled = true
			return
		}
	}
}

func containsWord(words []string, word string) bool {
	for _, w := range words {
		if strings.EqualFold(w, word) {
			return true
		}
	}
	return false
}

func removeWord(words []string, word string) []string {
	out := words[:0]
	for _, w := range words {
		if !strings.EqualFold(w, word) {
			out = append(out, w)
		}
	}
	return out
}
