// Package fingerprint computes the stable identity of a bank-statement row.
//
// Two records with the same fingerprint are the same movement: importers must
// skip or merge rather than insert a second row.
package fingerprint

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// sep joins the identity fields. An ASCII unit separator never appears in
// statement exports.
const sep = "\x1f"

// Fingerprint derives a short base-36 identity from the five fields that
// define a movement. It is total and deterministic: a zero date hashes as an
// empty date field rather than failing. Trimming whitespace from the string
// fields is the caller's precondition, so the hash survives whitespace-only
// Excel re-exports.
func Fingerprint(seqRef string, executionDate time.Time, amount decimal.Decimal, counterpartyName, communication string) string {
	date := ""
	if !executionDate.IsZero() {
		date = executionDate.Format("2006-01-02")
	}

	data := strings.Join([]string{
		seqRef,
		date,
		amount.StringFixed(2),
		counterpartyName,
		communication,
	}, sep)

	var h uint64
	for i := 0; i < len(data); i++ {
		h = h*31 + uint64(data[i])
	}

	return strconv.FormatUint(h, 36)
}
