package seed

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// LoadOpeningLedger ingests a CSV export of the previous books into the
// purchases and sales tables. Expected columns:
//
//	kind,party,date,quantity,rate,amount
//
// where kind is "purchase" or "sale" and party is the supplier or customer.
// The import only runs against an empty ledger; once any purchase or sale
// exists it is skipped, so restarts cannot double-import.
func LoadOpeningLedger(db *sqlx.DB, csvPath string) {
	var existing int
	if err := db.Get(&existing, `SELECT (SELECT COUNT(*) FROM purchases) + (SELECT COUNT(*) FROM sales)`); err != nil {
		log.Printf("unable to check ledger state before import: %v", err)
		return
	}
	if existing > 0 {
		log.Printf("ledger already has records, skipping opening import from %s", csvPath)
		return
	}

	file, err := os.Open(csvPath)
	if err != nil {
		log.Printf("unable to open opening ledger %s: %v", csvPath, err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Printf("unable to read opening ledger header: %v", err)
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Printf("unable to start opening ledger transaction: %v", err)
		return
	}
	purchaseStmt, err := tx.Preparex(`INSERT INTO purchases (id, supplier, date, quantity, rate, amount) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("unable to prepare purchase insert: %v", err)
		_ = tx.Rollback()
		return
	}
	defer purchaseStmt.Close()
	saleStmt, err := tx.Preparex(`INSERT INTO sales (id, customer, date, quantity, rate, amount, payment_received, pending_amount) VALUES (?, ?, ?, ?, ?, ?, 0, ?)`)
	if err != nil {
		log.Printf("unable to prepare sale insert: %v", err)
		_ = tx.Rollback()
		return
	}
	defer saleStmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("unable to read opening ledger row: %v", err)
			continue
		}
		if len(record) < 6 {
			continue
		}
		kind := strings.ToLower(strings.TrimSpace(record[0]))
		party := strings.TrimSpace(record[1])
		date := strings.TrimSpace(record[2])
		quantity, qErr := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
		rate, rErr := strconv.ParseFloat(strings.TrimSpace(record[4]), 64)
		amount, aErr := strconv.ParseFloat(strings.TrimSpace(record[5]), 64)

		if party == "" || date == "" || qErr != nil || rErr != nil || aErr != nil {
			log.Printf("skipping malformed opening ledger row: %v", record)
			continue
		}

		switch kind {
		case "purchase":
			if _, err := purchaseStmt.Exec(uuid.NewString(), party, date, quantity, rate, amount); err != nil {
				log.Printf("unable to import purchase from %s: %v", party, err)
				continue
			}
		case "sale":
			// Opening sales carry their full amount as pending; payments
			// collected before the cutover belong in the old books.
			if _, err := saleStmt.Exec(uuid.NewString(), party, date, quantity, rate, amount, amount); err != nil {
				log.Printf("unable to import sale to %s: %v", party, err)
				continue
			}
		default:
			log.Printf("skipping opening ledger row with unknown kind %q", kind)
			continue
		}
		rows++
	}

	if err := tx.Commit(); err != nil {
		log.Printf("unable to commit opening ledger import: %v", err)
	} else {
		log.Printf("imported opening ledger with %d rows", rows)
	}
}
