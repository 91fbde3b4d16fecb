// Package ofx turns OFX/QFX bank statements into capture utterances.
package ofx

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/aclindsa/ofxgo"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// StatementLine is one posted transaction from a statement.
type StatementLine struct {
	Date      time.Time
	ID        string
	AccountID string
	Payee     string
	Memo      string
	Type      string
	Amount    float64
	Debit     bool
}

// Utterance renders the line the way a user would describe the purchase.
func (l StatementLine) Utterance() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s on %s", l.Payee, model.FormatAmount(l.Amount), l.Date.Format("2006-01-02"))
	if l.Memo != "" && !strings.EqualFold(l.Memo, l.Payee) {
		fmt.Fprintf(&sb, " (%s)", l.Memo)
	}
	return sb.String()
}

// Parser reads OFX/QFX statements.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new OFX parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// SEVERITY must be INFO, WARN, or ERROR.
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML files sometimes drop the closing bracket of a bare opening tag.
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Parse returns every statement line in the file, bank and credit card alike.
func (p *Parser) Parse(reader io.Reader) ([]StatementLine, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var lines []StatementLine
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			bankStmts++
			lines = append(lines, convertAll(stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID))...)
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			ccStmts++
			lines = append(lines, convertAll(stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID))...)
		}
	}

	p.logger.Info("Parsed OFX file",
		"lines", len(lines),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return lines, nil
}

func convertAll(txns []ofxgo.Transaction, accountID string) []StatementLine {
	lines := make([]StatementLine, 0, len(txns))
	for _, tx := range txns {
		lines = append(lines, convert(tx, accountID))
	}
	return lines
}

func convert(tx ofxgo.Transaction, accountID string) StatementLine {
	// OFX signs debits negative.
	amount, _ := tx.TrnAmt.Float64()
	line := StatementLine{
		Date:      tx.DtPosted.Time,
		ID:        string(tx.FiTID),
		AccountID: accountID,
		Payee:     payeeName(tx),
		Memo:      strings.TrimSpace(string(tx.Memo)),
		Type:      tx.TrnType.String(),
		Amount:    amount,
		Debit:     amount < 0,
	}
	if line.Debit {
		line.Amount = -amount
	}
	return line
}

var cardPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// payeeName prefers PAYEE, then NAME, then MEMO when NAME is generic.
func payeeName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && isGenericDescription(name) {
		name = strings.TrimSpace(string(tx.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Drop a leading "MM/DD " posting date.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
