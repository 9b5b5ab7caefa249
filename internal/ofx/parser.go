// Package ofx parses OFX/QFX bank exports into statement rows.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/clubledger/tally/internal/common"
	"github.com/clubledger/tally/internal/model"
)

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	// Trim any leading whitespace or blank lines before the header
	content = strings.TrimLeft(content, " \t\r\n")

	// Fix mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, func(match string) string {
		return strings.ToUpper(match)
	})

	// Fix missing closing angle brackets in SGML-style OFX files.
	// Pattern: <TAGNAME at end of line with no > after it
	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX file and returns statement rows. Amounts keep
// the sign the bank reported; nothing is fingerprinted here, the importer
// owns identity.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	processedContent := p.preprocessOFX(string(content))

	resp, err := ofxgo.ParseResponse(strings.NewReader(processedContent))
	if err != nil {
		return nil, fmt.Errorf("%w: not parseable as OFX: %v", common.ErrInvalidImport, err)
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			txns, err := p.processBankStatement(stmt)
			if err != nil {
				slog.Warn("Failed to process bank statement",
					"account", stmt.BankAcctFrom.AcctID,
					"error", err)
				continue
			}
			transactions = append(transactions, txns...)
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			txns, err := p.processCreditCardStatement(stmt)
			if err != nil {
				slog.Warn("Failed to process credit card statement",
					"account", stmt.CCAcctFrom.AcctID,
					"error", err)
				continue
			}
			transactions = append(transactions, txns...)
		}
	}

	slog.Info("Parsed OFX file",
		"total_transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return transactions, nil
}

// processBankStatement converts OFX bank transactions to statement rows.
func (p *Parser) processBankStatement(stmt *ofxgo.StatementResponse) ([]model.Transaction, error) {
	if stmt.BankTranList == nil {
		return nil, nil
	}

	var transactions []model.Transaction
	accountID := string(stmt.BankAcctFrom.AcctID)
	currency := stmt.CurDef.String()

	for _, ofxTx := range stmt.BankTranList.Transactions {
		tx, err := p.convertTransaction(ofxTx, accountID, currency)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, nil
}

// processCreditCardStatement converts OFX credit card transactions to
// statement rows.
func (p *Parser) processCreditCardStatement(stmt *ofxgo.CCStatementResponse) ([]model.Transaction, error) {
	if stmt.BankTranList == nil {
		return nil, nil
	}

	var transactions []model.Transaction
	accountID := string(stmt.CCAcctFrom.AcctID)
	currency := stmt.CurDef.String()

	for _, ofxTx := range stmt.BankTranList.Transactions {
		tx, err := p.convertTransaction(ofxTx, accountID, currency)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, nil
}

// convertTransaction maps one OFX transaction onto a statement row. FiTID
// becomes the bank sequence reference, so a bank that truncates FiTIDs in a
// provisional export goes through the usual incomplete-reference upgrade at
// import time.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, accountID, currency string) (model.Transaction, error) {
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(2))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to parse amount for %s: %w", ofxTx.FiTID, err)
	}

	tx := model.Transaction{
		SequenceRef:      string(ofxTx.FiTID),
		ExecutionDate:    ofxTx.DtPosted.Time,
		Amount:           amount,
		Currency:         currency,
		AccountID:        accountID,
		CounterpartyName: p.counterpartyName(ofxTx),
		Communication:    strings.TrimSpace(string(ofxTx.Memo)),
	}

	// DTAVAIL is optional; most bank exports omit it.
	if ofxTx.DtAvail != nil && !ofxTx.DtAvail.IsZero() {
		tx.ValueDate = ofxTx.DtAvail.Time
	}

	return tx, nil
}

// counterpartyName picks the cleanest name the OFX record offers.
func (p *Parser) counterpartyName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}
	return strings.TrimSpace(string(tx.Name))
}

// GetAccounts extracts unique account IDs from the OFX file.
func (p *Parser) GetAccounts(ctx context.Context, reader io.Reader) ([]string, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	processedContent := p.preprocessOFX(string(content))

	resp, err := ofxgo.ParseResponse(strings.NewReader(processedContent))
	if err != nil {
		return nil, fmt.Errorf("%w: not parseable as OFX: %v", common.ErrInvalidImport, err)
	}

	accountMap := make(map[string]bool)

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			if stmt.BankAcctFrom.AcctID != "" {
				accountMap[string(stmt.BankAcctFrom.AcctID)] = true
			}
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			if stmt.CCAcctFrom.AcctID != "" {
				accountMap[string(stmt.CCAcctFrom.AcctID)] = true
			}
		}
	}

	var accounts []string
	for acct := range accountMap {
		accounts = append(accounts, acct)
	}

	return accounts, nil
}
