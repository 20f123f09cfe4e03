package template

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/nextiertech/outreach-messaging/internal/domain/identity"
)

// Result is the outcome of validating message text against lane rules.
// Valid is true iff Errors is empty; warnings never block a send.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Stats    Stats    `json:"stats"`
}

// Stats describes how carriers will segment the message on the wire.
type Stats struct {
	Length     int    `json:"length"`
	Encoding   string `json:"encoding"`
	Segments   int    `json:"segments"`
	PerSegment int    `json:"per_segment"`
}

const (
	// Single-segment budget for GSM-7 encoded messages; multipart
	// messages lose 7 septets per part to the concatenation header.
	gsm7SingleSegment = 160
	gsm7MultiSegment  = 153

	// UCS-2 budgets for messages with any non-GSM character.
	ucs2SingleSegment = 70
	ucs2MultiSegment  = 67
)

// blockedTokens are marketing words carriers associate with spam
// filtering. Any hit is an error on every lane.
var blockedTokens = []string{
	"free",
	"guarantee",
	"guaranteed",
	"winner",
	"urgent",
	"act now",
	"limited time",
	"no obligation",
	"risk-free",
	"click here",
	"congratulations",
	"prize",
	"cash bonus",
	"offer expires",
}

var blockedPatterns = compileTokenPatterns(blockedTokens)

// selfIdentPatterns recognize the "it's X from Y" shapes cold outreach
// messages must carry so the recipient knows who is texting.
var selfIdentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:it'?s|this is)\s+[A-Za-z]+`),
	regexp.MustCompile(`(?i)\bmy name is\s+[A-Za-z]+`),
	regexp.MustCompile(`(?i)\b[A-Za-z]+\s+(?:from|with|at)\s+[A-Za-z0-9]`),
}

// optOutPatterns detect opt-out language already present in the text.
// The dispatcher appends its own opt-out suffix, so duplicates read badly.
var optOutPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:reply|text|txt)\s+stop\b`),
	regexp.MustCompile(`(?i)\bopt[\s-]?out\b`),
	regexp.MustCompile(`(?i)\bunsubscribe\b`),
	regexp.MustCompile(`(?i)\bstop\s*(?:2|to)\s*(?:end|quit|cancel)\b`),
}

// HasOptOutLanguage reports whether the text already carries opt-out
// instructions. The dispatcher uses this to avoid double-suffixing.
func HasOptOutLanguage(text string) bool {
	return matchesAny(text, optOutPatterns)
}

func compileTokenPatterns(tokens []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(tokens))
	for _, token := range tokens {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(token)+`\b`))
	}
	return patterns
}

// Validate checks message text against the content rules of a lane.
// It is total: any UTF-8 input and any lane value produce a Result,
// never a panic or an error return.
func Validate(text string, lane identity.Lane) Result {
	var result Result
	result.Stats = computeStats(text)

	// Rule 1: single-segment requirement. Hard for cold outreach,
	// advisory for engaged conversations.
	if length := len([]rune(text)); length > gsm7SingleSegment {
		msg := fmt.Sprintf("message is %d characters; cold outreach requires a single segment (max %d)", length, gsm7SingleSegment)
		if lane == identity.LaneColdOutreach {
			result.Errors = append(result.Errors, msg)
		} else {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("message is %d characters and will send as %d segments", length, result.Stats.Segments))
		}
	}

	// Rule 2: blocked promotional tokens, both lanes.
	for i, pattern := range blockedPatterns {
		if match := pattern.FindString(text); match != "" {
			result.Errors = append(result.Errors,
				fmt.Sprintf("contains blocked promotional word %q", strings.ToUpper(blockedTokens[i])))
		}
	}

	if lane == identity.LaneColdOutreach {
		// Rule 3: cold outreach must identify the sender.
		if !matchesAny(text, selfIdentPatterns) {
			result.Errors = append(result.Errors,
				`cold outreach must identify the sender (e.g. "it's Sam from Acme")`)
		}

		// Rule 4: cold outreach should ask permission, not pitch.
		if !strings.Contains(text, "?") {
			result.Warnings = append(result.Warnings,
				"cold outreach reads better as a question; consider asking for permission to continue")
		}
	}

	// Rule 5a: redundant opt-out language, both lanes.
	if matchesAny(text, optOutPatterns) {
		result.Warnings = append(result.Warnings,
			"opt-out instructions are appended automatically; remove the duplicate opt-out language")
	}

	// Rule 5b: excessive ALL-CAPS tokens, both lanes.
	if n := countAllCapsTokens(text); n >= 3 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d all-caps words; heavy capitalization triggers carrier filtering", n))
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// countAllCapsTokens counts whitespace-delimited tokens of three or
// more letters written entirely in upper case.
func countAllCapsTokens(text string) int {
	count := 0
	for _, token := range strings.Fields(text) {
		letters := 0
		allUpper := true
		for _, r := range token {
			if unicode.IsLetter(r) {
				letters++
				if !unicode.IsUpper(r) {
					allUpper = false
					break
				}
			}
		}
		if allUpper && letters >= 3 {
			count++
		}
	}
	return count
}

// computeStats derives encoding and segment count the way carriers do:
// GSM-7 when every character fits the GSM basic or extension set
// (extension characters cost two septets), UCS-2 otherwise (counted in
// UTF-16 code units).
func computeStats(text string) Stats {
	length := 0
	gsm := true
	for _, r := range text {
		switch {
		case gsmBasicSet[r]:
			length++
		case gsmExtensionSet[r]:
			length += 2
		default:
			gsm = false
		}
		if !gsm {
			break
		}
	}

	if !gsm {
		length = 0
		for _, r := range text {
			if r > 0xFFFF {
				length += 2 // surrogate pair
			} else {
				length++
			}
		}
	}

	stats := Stats{Length: length}
	if gsm {
		stats.Encoding = "gsm7"
		stats.PerSegment = gsm7SingleSegment
		if length > gsm7SingleSegment {
			stats.PerSegment = gsm7MultiSegment
		}
	} else {
		stats.Encoding = "unicode"
		stats.PerSegment = ucs2SingleSegment
		if length > ucs2SingleSegment {
			stats.PerSegment = ucs2MultiSegment
		}
	}

	if length == 0 {
		stats.Segments = 1
		return stats
	}
	stats.Segments = (length + stats.PerSegment - 1) / stats.PerSegment
	return stats
}

var gsmBasicSet = buildRuneSet("@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑܧ¿abcdefghijklmnopqrstuvwxyzäöñüà")

var gsmExtensionSet = buildRuneSet("^{}\\[~]|€")

func buildRuneSet(chars string) map[rune]bool {
	set := make(map[rune]bool, len(chars))
	for _, r := range chars {
		set[r] = true
	}
	return set
}
