// Package dialogue normalizes raw consultation transcripts into an ordered
// Doctor/Patient turn sequence. Upstream transcript generators serialize the
// dialogue inconsistently — sometimes a JSON envelope whose payload is itself
// JSON-encoded, sometimes a JSON document with repeated keys, sometimes plain
// labeled text — so normalization runs a fixed priority chain of strategies
// and returns the first non-empty result.
package dialogue

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Speaker is one of the two fixed dialogue roles.
type Speaker string

const (
	SpeakerDoctor  Speaker = "Doctor"
	SpeakerPatient Speaker = "Patient"
)

// Turn is a single normalized utterance. Turns carry no identity beyond
// their position in the produced sequence.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Strategy identifies which parsing strategy produced a result. It is a
// diagnostic side channel only and never changes the output shape.
type Strategy string

const (
	StrategyEnvelope      Strategy = "double_encoded_envelope"
	StrategyPatternScan   Strategy = "ordered_pattern_scan"
	StrategySingleDecode  Strategy = "single_layer_decode"
	StrategyLineHeuristic Strategy = "line_heuristic"
	StrategyNone          Strategy = "none"
)

// Normalize converts a raw transcript blob into ordered Doctor/Patient turns.
// It never fails: malformed input falls through to the line heuristic, and
// empty input yields an empty sequence.
func Normalize(raw string) []Turn {
	turns, _ := NormalizeWithStrategy(raw)
	return turns
}

// NormalizeWithStrategy is Normalize plus the strategy that produced the
// result, for logging and metrics.
func NormalizeWithStrategy(raw string) ([]Turn, Strategy) {
	if strings.TrimSpace(raw) == "" {
		return nil, StrategyNone
	}
	for _, s := range strategies {
		if turns := s.fn(raw); len(turns) > 0 {
			return turns, s.name
		}
	}
	return nil, StrategyNone
}

var strategies = []struct {
	name Strategy
	fn   func(string) []Turn
}{
	{StrategyEnvelope, parseEnvelope},
	{StrategyPatternScan, parsePatternScan},
	{StrategySingleDecode, parseSingleDecode},
	{StrategyLineHeuristic, parseLineHeuristic},
}

// parseEnvelope handles the double-encoded shape: a JSON object whose "text"
// field is itself a JSON-encoded dialogue.
func parseEnvelope(raw string) []Turn {
	var env struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &env); err != nil || strings.TrimSpace(env.Text) == "" {
		return nil
	}
	return decodeDialogue(env.Text)
}

// speakerPattern matches `"Doctor": "..."` / `"Patient": "..."` fragments,
// tolerating escaped quotes inside the captured text.
var speakerPattern = regexp.MustCompile(`"(Doctor|Patient)"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// parsePatternScan scans the raw text for speaker-tagged fragments in
// left-to-right order. Unlike a JSON decode it preserves every occurrence of
// a repeated key, which direct decoding would collapse to the last value.
func parsePatternScan(raw string) []Turn {
	matches := speakerPattern.FindAllStringSubmatch(raw, -1)
	turns := make([]Turn, 0, len(matches))
	for _, m := range matches {
		text := strings.TrimSpace(unescape(m[2]))
		if text == "" {
			continue
		}
		turns = append(turns, Turn{Speaker: Speaker(m[1]), Text: text})
	}
	return turns
}

// parseSingleDecode treats the input as a single JSON layer: either an array
// of single-entry objects or one object walked entry by entry.
func parseSingleDecode(raw string) []Turn {
	return decodeDialogue(raw)
}

// decodeDialogue walks a JSON-encoded dialogue with a token decoder so that
// object entries are visited in document order and duplicate keys are not
// collapsed. Accepted shapes: an array of objects, or a bare object. Only
// entries whose key is a speaker name and whose value is a string are kept.
func decodeDialogue(s string) []Turn {
	dec := json.NewDecoder(strings.NewReader(s))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}

	var turns []Turn
	switch delim, ok := tok.(json.Delim); {
	case ok && delim == '[':
		for dec.More() {
			open, err := dec.Token()
			if err != nil {
				return turns
			}
			if d, ok := open.(json.Delim); !ok || d != '{' {
				return turns
			}
			turns = append(turns, decodeObjectEntries(dec)...)
			if _, err := dec.Token(); err != nil { // closing '}'
				return turns
			}
		}
	case ok && delim == '{':
		turns = decodeObjectEntries(dec)
	default:
		return nil
	}
	return turns
}

// decodeObjectEntries reads key/value pairs until the enclosing object ends,
// keeping ordered speaker-tagged string values. Non-string values are
// consumed and skipped.
func decodeObjectEntries(dec *json.Decoder) []Turn {
	var turns []Turn
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return turns
		}
		key, _ := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return turns
		}
		if d, ok := valTok.(json.Delim); ok {
			skipCompound(dec, d)
			continue
		}
		text, ok := valTok.(string)
		if !ok {
			continue
		}
		if key != string(SpeakerDoctor) && key != string(SpeakerPatient) {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		turns = append(turns, Turn{Speaker: Speaker(key), Text: text})
	}
	return turns
}

// skipCompound consumes the remainder of a nested array or object value.
func skipCompound(dec *json.Decoder, open json.Delim) {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
}

// parseLineHeuristic is the last resort: split into non-empty lines, honor
// explicit "Doctor:"/"Patient:" labels, and otherwise alternate speakers
// starting with the doctor. It always produces a result for non-blank input.
func parseLineHeuristic(raw string) []Turn {
	var turns []Turn
	expected := SpeakerDoctor
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case hasLabel(line, SpeakerDoctor):
			turns = append(turns, Turn{Speaker: SpeakerDoctor, Text: stripLabel(line)})
			expected = SpeakerPatient
		case hasLabel(line, SpeakerPatient):
			turns = append(turns, Turn{Speaker: SpeakerPatient, Text: stripLabel(line)})
			expected = SpeakerDoctor
		default:
			turns = append(turns, Turn{Speaker: expected, Text: line})
			expected = other(expected)
		}
	}
	return turns
}

func hasLabel(line string, sp Speaker) bool {
	return strings.HasPrefix(strings.ToLower(line), strings.ToLower(string(sp))+":")
}

func stripLabel(line string) string {
	_, rest, _ := strings.Cut(line, ":")
	return strings.TrimSpace(rest)
}

func other(sp Speaker) Speaker {
	if sp == SpeakerDoctor {
		return SpeakerPatient
	}
	return SpeakerDoctor
}

var unescaper = strings.NewReplacer(
	`\n`, "\n",
	`\t`, "\t",
	`\r`, "\r",
	`\"`, `"`,
	`\\`, `\`,
)

func unescape(s string) string {
	return unescaper.Replace(s)
}
