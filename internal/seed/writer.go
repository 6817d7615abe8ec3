package seed

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

func WriteCSV(path string, orders []Order) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, order := range orders {
		record := []string{
			order.Codice,
			order.NomeECognome,
			order.Prodotto,
			strconv.Itoa(int(order.Quantita)),
			strconv.FormatFloat(order.Prezzo, 'f', 2, 64),
			order.StatoSpedizione,
			order.DataOrdine,
			order.DataConsegnaPrevista,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteParquet emits the same dataset in columnar form, for loading the
// master file through read_parquet instead of read_csv_auto.
func WriteParquet(path string, orders []Order) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[Order](file)
	if _, err := writer.Write(orders); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
