package seed

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// LoadBreeds ingests the CSV into the breeds table, ignoring duplicates.
func LoadBreeds(db *sqlx.DB, csvPath string, log *zap.Logger) {
	file, err := os.Open(csvPath)
	if err != nil {
		log.Warn("unable to load breed catalog", zap.String("path", csvPath), zap.Error(err))
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Warn("unable to read breed header", zap.Error(err))
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Warn("unable to start breed transaction", zap.Error(err))
		return
	}
	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO breeds (name) VALUES (?)`)
	if err != nil {
		log.Warn("unable to prepare breed insert", zap.Error(err))
		_ = tx.Rollback()
		return
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn("unable to read breed row", zap.Error(err))
			continue
		}
		if len(record) < 1 {
			continue
		}
		name := strings.TrimSpace(record[0])
		if name == "" {
			continue
		}

		if _, err := stmt.Exec(name); err != nil {
			log.Warn("unable to insert breed", zap.String("name", name), zap.Error(err))
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Warn("unable to commit breed seed", zap.Error(err))
	} else {
		log.Info("seeded breed catalog", zap.Int("rows", rows))
	}
}
