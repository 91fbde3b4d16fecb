package llm

import (
	"fmt"
	"strings"
)

const extractionSystemPrompt = `You extract a single financial record from a user's message or receipt image.
Respond with JSON only, no prose, using exactly this shape:
{"amount": <number or null>, "counterparty": "<merchant or person>", "date": "<YYYY-MM-DD or empty>",
 "description": "<short description>", "category_guess": "<one of the listed categories or empty>",
 "category_confidence": <0.0-1.0>, "failed": <true|false>, "reason": "<why extraction failed, if it did>"}
Amounts are positive numbers without currency symbols or thousands separators.
Set "failed" to true when the input does not describe a payment or purchase.`

const intentSystemPrompt = `You classify a user's reply to a draft financial record awaiting confirmation.
Respond with JSON only, using exactly this shape:
{"intent": "confirm" | "correct" | "cancel" | "unrelated",
 "corrections": {"amount": <number or null>, "counterparty": <string or null>, "date": <"YYYY-MM-DD" or null>,
                 "description": <string or null>, "category": <string or null>}}
"confirm" means the user accepts the draft as shown. "correct" means the user changes one or more fields;
include only the fields they changed. "cancel" means the user wants to discard the draft.
Anything else is "unrelated".`

const adviceSystemPrompt = `You are a concise personal finance assistant. Give one or two sentences of practical,
friendly advice about the spending just recorded. Do not repeat the numbers back verbatim.`

func buildExtractionPrompt(in ExtractionInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Today's date: %s\n", in.Now.Format("2006-01-02"))
	if len(in.Categories) > 0 {
		fmt.Fprintf(&sb, "Categories: %s\n", strings.Join(in.Categories, ", "))
	}
	if in.Text != "" {
		fmt.Fprintf(&sb, "Message: %s\n", in.Text)
	} else {
		sb.WriteString("Message: (see attached image)\n")
	}
	return sb.String()
}

func buildIntentPrompt(in IntentInput) string {
	var sb strings.Builder
	sb.WriteString("Draft awaiting confirmation:\n")
	sb.WriteString(in.DraftSummary)
	sb.WriteString("\n")
	if len(in.Categories) > 0 {
		fmt.Fprintf(&sb, "Known categories: %s\n", strings.Join(in.Categories, ", "))
	}
	if len(in.History) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, line := range in.History {
			sb.WriteString("- ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	fmt.Fprintf(&sb, "User reply: %s\n", in.Reply)
	return sb.String()
}

func buildAdvicePrompt(in AdviceInput) string {
	var sb strings.Builder
	sb.WriteString("Recorded: ")
	sb.WriteString(in.RecordSummary)
	sb.WriteString("\n")
	if in.WarningSummary != "" {
		sb.WriteString("Budget status: ")
		sb.WriteString(in.WarningSummary)
		sb.WriteString("\n")
	}
	return sb.String()
}
