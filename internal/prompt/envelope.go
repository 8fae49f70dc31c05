package prompt

import (
	"fmt"
	"strings"
)

// Envelope families.
const (
	EnvelopeLlama3 = "llama3"
	EnvelopeChatML = "chatml"
	EnvelopePlain  = "plain"
)

// Envelope wraps the system and user blocks in model-family turn markers.
// Wrap is the only place that emits the begin-of-text marker; set OmitBOS
// when the backend tokenizer prepends it already.
type Envelope struct {
	Family  string
	OmitBOS bool

	bos       string
	turnOpen  func(role string) string
	turnClose string
	assistant string
	stops     []string
	reserved  []string
}

// NewEnvelope returns the envelope for family.
func NewEnvelope(family string, omitBOS bool) (Envelope, error) {
	switch family {
	case EnvelopeLlama3:
		return Envelope{
			Family:    family,
			OmitBOS:   omitBOS,
			bos:       "<|begin_of_text|>",
			turnOpen:  func(role string) string { return "<|start_header_id|>" + role + "<|end_header_id|>\n\n" },
			turnClose: "<|eot_id|>",
			assistant: "<|start_header_id|>assistant<|end_header_id|>\n",
			stops:     []string{"<|eot_id|>"},
			reserved:  []string{"<|begin_of_text|>", "<|start_header_id|>", "<|end_header_id|>", "<|eot_id|>"},
		}, nil
	case EnvelopeChatML:
		return Envelope{
			Family:    family,
			OmitBOS:   omitBOS,
			turnOpen:  func(role string) string { return "<|im_start|>" + role + "\n" },
			turnClose: "<|im_end|>\n",
			assistant: "<|im_start|>assistant\n",
			stops:     []string{"<|im_end|>"},
			reserved:  []string{"<|im_start|>", "<|im_end|>"},
		}, nil
	case EnvelopePlain:
		return Envelope{
			Family:    family,
			OmitBOS:   omitBOS,
			turnOpen:  func(role string) string { return strings.ToUpper(role[:1]) + role[1:] + ":\n" },
			turnClose: "\n\n",
			assistant: "Assistant:\n",
		}, nil
	default:
		return Envelope{}, fmt.Errorf("unknown prompt envelope %q", family)
	}
}

// BOS returns the begin-of-text marker this envelope emits, or "" if none.
func (e Envelope) BOS() string {
	if e.OmitBOS {
		return ""
	}
	return e.bos
}

// StopSequences returns the stop strings implied by the turn markers.
func (e Envelope) StopSequences() []string {
	return append([]string(nil), e.stops...)
}

// Scrub removes this envelope's reserved markers from text so user data can
// not open or close turns. Removal repeats until the text is stable, since
// deleting one marker can join its neighbours into another.
func (e Envelope) Scrub(text string) string {
	for {
		next := text
		for _, tok := range e.reserved {
			next = strings.ReplaceAll(next, tok, "")
		}
		if next == text {
			return text
		}
		text = next
	}
}

// Wrap assembles the full prompt, ending with an open assistant turn.
func (e Envelope) Wrap(system, user string) string {
	return e.WrapSystem(system) + e.WrapUser(user)
}

// WrapSystem returns the leading part of the prompt: the begin-of-text
// marker and the closed system turn.
func (e Envelope) WrapSystem(system string) string {
	return e.BOS() + e.turnOpen("system") + system + e.turnClose
}

// WrapUser returns the closed user turn followed by the open assistant turn.
func (e Envelope) WrapUser(user string) string {
	return e.turnOpen("user") + user + e.turnClose + e.assistant
}
