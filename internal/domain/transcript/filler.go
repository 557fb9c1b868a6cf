package transcript

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/forPelevin/clipforge/internal/types"
)

// FillerLexicon lists the filler tokens, multi-word entries first so that the
// alternation prefers the longest match.
var FillerLexicon = []string{
	"you know", "i mean", "sort of", "kind of",
	"umm", "uhm", "um", "uh", "erm", "hmm", "ah",
	"like", "basically", "literally",
}

var fillerRE = func() *regexp.Regexp {
	alts := make([]string, 0, len(FillerLexicon))
	for _, f := range FillerLexicon {
		alts = append(alts, strings.ReplaceAll(regexp.QuoteMeta(f), " ", `\s+`))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}()

var (
	reTrailingSep = regexp.MustCompile(`^[,;]?[ \t]*`)
	reMultiSpace  = regexp.MustCompile(`[ \t]{2,}`)
	reSpaceBefore = regexp.MustCompile(`[ \t]+([,;.!?])`)
)

// Filler is one matched filler token. Start and End are byte offsets into the
// text it was detected in; Index is the ordinal of the match.
type Filler struct {
	Word  string `json:"word"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Index int    `json:"index"`
}

// DetectFillerWords finds the filler tokens of text. Tokens glued to a word
// by a hyphen or apostrophe ("like-minded") are part of that word.
func DetectFillerWords(text string) []Filler {
	locs := fillerRE.FindAllStringIndex(text, -1)
	out := make([]Filler, 0, len(locs))
	for _, l := range locs {
		if gluedAt(text, l[0]-1) || gluedAt(text, l[1]) {
			continue
		}
		out = append(out, Filler{Word: text[l[0]:l[1]], Start: l[0], End: l[1], Index: len(out)})
	}
	return out
}

func gluedAt(text string, i int) bool {
	return i >= 0 && i < len(text) && (text[i] == '-' || text[i] == '\'')
}

// selectFillers keeps the fillers whose offsets still match text, drops
// duplicates and overlaps, and orders them by descending Start.
func selectFillers(text string, fillers []Filler) []Filler {
	fs := make([]Filler, 0, len(fillers))
	for _, f := range fillers {
		if f.Start < 0 || f.End > len(text) || f.Start >= f.End {
			continue
		}
		if !strings.EqualFold(text[f.Start:f.End], f.Word) {
			continue
		}
		fs = append(fs, f)
	}
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].Start > fs[j].Start })

	out := fs[:0]
	lastStart := len(text) + 1
	for _, f := range fs {
		if f.End > lastStart {
			continue
		}
		lastStart = f.Start
		out = append(out, f)
	}
	return out
}

// RemoveFillerWords returns text with the given fillers cut out and the
// number of fillers actually removed. A filler's trailing comma goes with it;
// separators left dangling before sentence-final punctuation are dropped; a
// sentence that started with a capitalized filler is re-capitalized. Fillers
// whose offsets no longer match text are ignored.
func RemoveFillerWords(text string, fillers []Filler) (string, int) {
	fs := selectFillers(text, fillers)
	if len(fs) == 0 {
		return text, 0
	}
	out := text
	for _, f := range fs {
		left := out[:f.Start]
		right := out[f.End:]
		right = right[len(reTrailingSep.FindString(right)):]

		if right == "" || strings.ContainsRune(".!?", firstRune(right)) {
			left = strings.TrimRight(left, " \t,;")
		}
		if startsSentence(left) && startsUpper(f.Word) {
			right = capitalize(right)
		}
		if left != "" && right != "" && !endsSpace(left) && isWordRune(firstRune(right)) {
			left += " "
		}
		out = left + right
	}
	out = reMultiSpace.ReplaceAllString(out, " ")
	out = reSpaceBefore.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out), len(fs)
}

// RemoveFillerWordTimings drops the word timings that spell the fillers
// selected from text, so a clip's caption words stay in step with the text
// RemoveFillerWords produces for the same selection. A selected filler is
// located in words by its ordinal among the fillers detected in text; it is
// only dropped when the words at that ordinal spell the same filler and no
// word is cut in half.
func RemoveFillerWordTimings(words []types.Word, text string, fillers []Filler) []types.Word {
	sel := selectFillers(text, fillers)
	if len(sel) == 0 || len(words) == 0 {
		return words
	}
	ordinal := map[[2]int]int{}
	for i, d := range DetectFillerWords(text) {
		ordinal[[2]int{d.Start, d.End}] = i
	}
	wanted := map[int]string{}
	for _, f := range sel {
		if k, ok := ordinal[[2]int{f.Start, f.End}]; ok {
			wanted[k] = foldSpace(f.Word)
		}
	}

	joined, spans := joinWordSpans(words)
	drop := make([]bool, len(words))
	for k, m := range DetectFillerWords(joined) {
		if w, ok := wanted[k]; !ok || foldSpace(m.Word) != w {
			continue
		}
		for _, i := range coveredWords(joined, spans, m) {
			drop[i] = true
		}
	}

	out := make([]types.Word, 0, len(words))
	for i, w := range words {
		if !drop[i] {
			out = append(out, w)
		}
	}
	return out
}

// joinWordSpans joins the trimmed words with single spaces and records each
// word's byte span in the result.
func joinWordSpans(words []types.Word) (string, [][2]int) {
	var b strings.Builder
	spans := make([][2]int, len(words))
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		tok := strings.TrimSpace(w.Word)
		spans[i] = [2]int{b.Len(), b.Len() + len(tok)}
		b.WriteString(tok)
	}
	return b.String(), spans
}

// coveredWords returns the indexes of the words a match spans. It returns
// nil when the match covers only part of a word's letters.
func coveredWords(joined string, spans [][2]int, m Filler) []int {
	var out []int
	for i, sp := range spans {
		if sp[1] <= m.Start || sp[0] >= m.End {
			continue
		}
		tok := joined[sp[0]:sp[1]]
		lead := len(tok) - len(strings.TrimLeftFunc(tok, notWordRune))
		core := strings.TrimFunc(tok, notWordRune)
		if sp[0]+lead < m.Start || sp[0]+lead+len(core) > m.End {
			return nil
		}
		out = append(out, i)
	}
	return out
}

func notWordRune(r rune) bool { return !isWordRune(r) && r != '\'' }

func foldSpace(s string) string { return strings.ToLower(strings.Join(strings.Fields(s), " ")) }

func startsSentence(left string) bool {
	t := strings.TrimRight(left, " \t")
	if t == "" {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(t)
	return r == '.' || r == '!' || r == '?'
}

func startsUpper(s string) bool {
	r := firstRune(s)
	return unicode.IsUpper(r)
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func endsSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
