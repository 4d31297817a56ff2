package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

var (
	tagRegex    = regexp.MustCompile(`</?[^>]+(>|$)`)
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	clauseBreak = regexp.MustCompile(`[^\p{L}\p{N}\s]+|https?://[^\s]+`)
	gmtOffset   = regexp.MustCompile(`^(.*) GMT([+-]\d{1,2})$`)
)

// vietnamTime is the publishers' local zone, used for dates without an offset.
var vietnamTime = time.FixedZone("ICT", 7*60*60)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "for": {}, "of": {}, "and": {}, "on": {},
	"và": {}, "của": {}, "là": {}, "có": {}, "được": {}, "cho": {}, "với": {}, "các": {}, "những": {},
	"một": {}, "trong": {}, "khi": {}, "đã": {}, "đang": {}, "sẽ": {}, "này": {}, "đó": {}, "thì": {},
	"không": {}, "người": {}, "từ": {}, "về": {}, "ra": {}, "vào": {}, "lại": {}, "như": {}, "để": {},
	"tại": {}, "theo": {}, "sau": {}, "trước": {}, "năm": {}, "ngày": {}, "bị": {}, "do": {}, "nhiều": {},
	"hơn": {}, "cũng": {}, "còn": {}, "mới": {}, "nhưng": {}, "nếu": {}, "vì": {}, "đến": {}, "hay": {},
	"gì": {}, "nào": {}, "ở": {}, "rất": {}, "việc": {}, "làm": {}, "qua": {}, "lên": {}, "xuống": {},
}

// RemoveURLs removes all URLs from the input text.
func RemoveURLs(input string) string {
	return urlRegex.ReplaceAllString(input, " ")
}

// StripTags removes anything that looks like an HTML tag, including a
// trailing unterminated one.
func StripTags(input string) string {
	return tagRegex.ReplaceAllString(input, "")
}

// DecodeEntities decodes HTML character references and trims the result.
func DecodeEntities(input string) string {
	return strings.TrimSpace(html.UnescapeString(input))
}

// PlainText turns feed markup into display text: tags are stripped first,
// entities decoded second, then whitespace is collapsed.
func PlainText(input string) string {
	if input == "" {
		return ""
	}
	text := html.UnescapeString(StripTags(input))
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CleanText strips HTML entities, punctuation, squeezes whitespace, and removes URLs.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = RemoveURLs(decoded)
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	decoded = strings.TrimSpace(decoded)
	return decoded
}

// Tokens returns lowercased words of at least minLen runes that are not stop-words.
func Tokens(text string, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	var out []string
	for _, token := range strings.Fields(clean) {
		if keep(token, minLen) {
			out = append(out, token)
		}
	}
	return out
}

// Phrases returns adjacent word pairs that do not cross punctuation.
// Vietnamese words are mostly two syllables, so pairs carry far more
// meaning than single tokens ("hà nội", "giá vàng").
func Phrases(text string, minLen int) []string {
	text = strings.ToLower(html.UnescapeString(text))
	if text == "" {
		return nil
	}

	var out []string
	for _, clause := range clauseBreak.Split(text, -1) {
		words := strings.Fields(clause)
		for i := 0; i+1 < len(words); i++ {
			if keep(words[i], minLen) && keep(words[i+1], minLen) {
				out = append(out, words[i]+" "+words[i+1])
			}
		}
	}
	return out
}

func keep(token string, minLen int) bool {
	token = strings.TrimFunc(token, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len([]rune(token)) < minLen {
		return false
	}
	if isNumber(token) {
		return false
	}
	_, skip := stopwords[token]
	return !skip
}

func isNumber(token string) bool {
	_, err := strconv.Atoi(token)
	return err == nil
}

// ExtractKeywords returns the most frequent words that are not stop-words.
func ExtractKeywords(text string, limit, minLen int) []string {
	freq := make(map[string]int)
	for _, token := range Tokens(text, minLen) {
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	type kv struct {
		word  string
		count int
	}

	pairs := make([]kv, 0, len(freq))
	for word, count := range freq {
		pairs = append(pairs, kv{word: word, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].word < pairs[j].word
		}
		return pairs[i].count > pairs[j].count
	})

	max := limit
	if max <= 0 || max > len(pairs) {
		max = len(pairs)
	}

	keywords := make([]string, 0, max)
	for i := 0; i < max; i++ {
		keywords = append(keywords, pairs[i].word)
	}

	return keywords
}

// DocumentID hashes an identity key into a fixed-length id usable where the
// key itself is too long or contains reserved characters.
func DocumentID(key string) string {
	s := sha1.Sum([]byte(key))
	return hex.EncodeToString(s[:])
}

// ParseTime parses the date formats seen across the configured publishers.
// It returns the zero time when nothing matches.
func ParseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	// "GMT+7" would otherwise match the MST layout as an unknown zone
	// name with no offset.
	if m := gmtOffset.FindStringSubmatch(raw); m != nil {
		hours, err := strconv.Atoi(m[2])
		if err == nil {
			zone := time.FixedZone("GMT"+m[2], hours*60*60)
			if ts, err := time.ParseInLocation("Mon, 02 Jan 2006 15:04:05", strings.TrimSpace(m[1]), zone); err == nil {
				return ts.UTC()
			}
		}
	}

	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 02 Jan 06 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 -0700",
		time.RFC3339Nano,
		time.RFC3339,
	}
	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts.UTC()
		}
	}

	if ts, err := time.ParseInLocation("2006-01-02 15:04:05", raw, vietnamTime); err == nil {
		return ts.UTC()
	}

	return time.Time{}
}
