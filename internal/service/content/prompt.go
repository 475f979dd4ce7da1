package content

import (
	"fmt"
	"strings"

	"github.com/ignite/outreach-pipeline/internal/domain"
)

// SystemPrompt frames the model for every generation request.
const SystemPrompt = "You are an expert B2B copywriter specializing in cold outreach emails."

// DefaultDescription stands in for recipients without a directory description.
const DefaultDescription = "Local service provider"

var toneInstructions = map[domain.Tone]string{
	domain.ToneProfessional: "Write in a professional, business-like tone.",
	domain.ToneFriendly:     "Write in a friendly, conversational tone.",
	domain.ToneCasual:       "Write in a casual, relaxed tone.",
	domain.ToneFormal:       "Write in a formal, respectful tone.",
	domain.ToneEnthusiastic: "Write in an enthusiastic, energetic tone.",
}

// ToneInstruction returns the style sentence for a tone, falling back to
// the professional instruction.
func ToneInstruction(t domain.Tone) string {
	return toneInstructions[t.OrDefault()]
}

// Request holds everything needed to write one email.
type Request struct {
	Recipient          domain.ResolvedRecipient
	ServiceDescription string
	Tone               domain.Tone
	SenderName         string
}

// BuildPrompt renders the user prompt for a request.
func BuildPrompt(req Request) string {
	name := req.Recipient.Name
	if name == "" {
		name = domain.DefaultRecipientName
	}
	industry := req.Recipient.Industry
	if industry == "" {
		industry = domain.DefaultIndustry
	}
	desc := req.Recipient.Description
	if desc == "" {
		desc = DefaultDescription
	}

	var b strings.Builder
	b.WriteString("You are writing a personalized cold email to promote a service to a business.\n\n")
	b.WriteString("BUSINESS INFORMATION:\n")
	fmt.Fprintf(&b, "- Business Name: %s\n", name)
	fmt.Fprintf(&b, "- Industry: %s\n", industry)
	fmt.Fprintf(&b, "- Description: %s\n\n", desc)
	b.WriteString("YOUR SERVICE:\n")
	fmt.Fprintf(&b, "- Description: %s\n", req.ServiceDescription)
	fmt.Fprintf(&b, "- Sender Name: %s\n\n", req.SenderName)
	fmt.Fprintf(&b, "TONE: %s\n\n", ToneInstruction(req.Tone))
	b.WriteString(`TASK: Write a personalized cold email that:
1. Opens with a compelling subject line
2. Shows you understand their business and industry
3. Clearly explains how your service can help them
4. Includes a soft call-to-action
5. Keeps it concise (under 250 words)
6. Avoids spam trigger words

FORMAT RULES:
- Line 1 is the subject line only, with no "Subject:" label.
- Line 2 is blank.
- Then 2 to 3 short paragraphs separated by blank lines.
- End with a closing and a signature using the sender name above.
- Never use bracketed placeholders such as [Your Name] or [Company]; write the real values or leave them out.
`)
	return b.String()
}
