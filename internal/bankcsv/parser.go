// Package bankcsv parses semicolon-delimited bank CSV exports into
// statement rows.
//
// Expected column layout (header row required, order fixed):
//
//	sequence_ref;execution_date;value_date;amount;currency;counterparty_iban;counterparty_name;communication
//
// Dates are DD/MM/YYYY or YYYY-MM-DD. Amounts accept both "1234.56" and the
// European "1.234,56" form. Sign is kept as exported.
package bankcsv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubledger/tally/internal/common"
	"github.com/clubledger/tally/internal/model"
)

const expectedColumns = 8

var dateLayouts = []string{"02/01/2006", "2006-01-02"}

// Parser reads bank CSV exports.
type Parser struct{}

// NewParser creates a new CSV parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile parses a CSV export and returns statement rows. Rows keep the
// sign the bank reported; nothing is fingerprinted here, the importer owns
// identity.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	r := csv.NewReader(reader)
	r.Comma = ';'
	r.FieldsPerRecord = expectedColumns
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty CSV file", common.ErrInvalidImport)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", common.ErrInvalidImport, err)
	}
	if !strings.EqualFold(strings.TrimSpace(header[0]), "sequence_ref") {
		return nil, fmt.Errorf("%w: unexpected CSV header, first column is %q", common.ErrInvalidImport, header[0])
	}

	var transactions []model.Transaction
	line := 1

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read CSV line %d: %v", common.ErrInvalidImport, line, err)
		}

		txn, err := p.convertRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%w: CSV line %d: %v", common.ErrInvalidImport, line, err)
		}
		transactions = append(transactions, txn)
	}

	return transactions, nil
}

func (p *Parser) convertRecord(record []string) (model.Transaction, error) {
	executionDate, err := parseDate(record[1])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("execution date: %w", err)
	}

	var valueDate time.Time
	if strings.TrimSpace(record[2]) != "" {
		valueDate, err = parseDate(record[2])
		if err != nil {
			return model.Transaction{}, fmt.Errorf("value date: %w", err)
		}
	}

	amount, err := parseAmount(record[3])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("amount: %w", err)
	}

	currency := strings.TrimSpace(record[4])
	if currency == "" {
		currency = "EUR"
	}

	return model.Transaction{
		SequenceRef:      strings.TrimSpace(record[0]),
		ExecutionDate:    executionDate,
		ValueDate:        valueDate,
		Amount:           amount,
		Currency:         currency,
		CounterpartyIBAN: strings.TrimSpace(record[5]),
		CounterpartyName: strings.TrimSpace(record[6]),
		Communication:    strings.TrimSpace(record[7]),
	}, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// parseAmount accepts "1234.56", "-45,00", and "1.234,56".
func parseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, ",") {
		value = strings.ReplaceAll(value, ".", "")
		value = strings.ReplaceAll(value, ",", ".")
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("unparseable amount: %w", err)
	}
	return amount, nil
}
