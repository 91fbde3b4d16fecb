package engine

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spice-capture/internal/finish"
	"github.com/Veraticus/spice-capture/internal/model"
)

// notice prefixes a confirmation prompt with why it is being shown again.
type notice int

const (
	noticeNone notice = iota
	noticeUnclear
	noticeCorrected
	noticeNothingChanged
	noticeExpired
)

const (
	clarifyMessage = "I couldn't find a purchase in that. Tell me the amount and where you spent it, " +
		"for example \"25.000 at Store X for groceries\"."
	closedMessage = "Okay, I've discarded that draft. Send a new one whenever you're ready."
)

func clarifyPrompt(n notice) string {
	if n == noticeExpired {
		return "Your previous draft expired without a reply. " + clarifyMessage
	}
	return clarifyMessage
}

func confirmationMessage(d *model.Draft, n notice, changed []string) string {
	var sb strings.Builder
	switch n {
	case noticeUnclear:
		sb.WriteString("Sorry, I didn't catch that. ")
	case noticeCorrected:
		fmt.Fprintf(&sb, "Updated %s. ", strings.Join(changed, ", "))
	case noticeNothingChanged:
		sb.WriteString("That matches what I already have. ")
	case noticeExpired:
		sb.WriteString("Your previous draft expired, so I started a new one. ")
	}

	fmt.Fprintf(&sb, "I recorded %s under %s", model.FormatAmount(d.Amount), d.CategoryName)
	if d.Counterparty != "" {
		fmt.Fprintf(&sb, " at %s", d.Counterparty)
	}
	if d.Description != "" && d.Description != d.Counterparty {
		fmt.Fprintf(&sb, " (%s)", d.Description)
	}
	fmt.Fprintf(&sb, " on %s. Is that right? Reply yes to confirm, or tell me what to change.", d.Date.Format("2 Jan 2006"))
	return sb.String()
}

func finalizedMessage(d *model.Draft, warning *model.BudgetWarning) string {
	msg := fmt.Sprintf("Saved %s under %s.", model.FormatAmount(d.Amount), d.CategoryName)
	if warning != nil {
		msg += " Heads up: " + finish.WarningSummary(warning) + "."
	}
	return msg
}
