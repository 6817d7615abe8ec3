package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shipchat/shipchat/internal/seed"
)

func main() {
	outDir := flag.String("out", "data", "output directory for the generated dataset")
	rows := flag.Int("rows", 200, "number of orders to generate")
	seedValue := flag.Int64("seed", 42, "random seed")
	name := flag.String("name", "data", "base file name (writes <name>.csv and <name>.parquet)")
	parquet := flag.Bool("parquet", true, "also write a parquet copy")
	flag.Parse()

	if *rows <= 0 {
		fmt.Fprintln(os.Stderr, "rows must be positive")
		os.Exit(2)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output directory: %v\n", err)
		os.Exit(1)
	}

	orders := seed.NewGenerator(*seedValue).Dataset(*rows)
	base := strings.TrimSuffix(*name, ".csv")

	csvPath := filepath.Join(*outDir, base+".csv")
	if err := seed.WriteCSV(csvPath, orders); err != nil {
		fmt.Fprintf(os.Stderr, "write csv: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d orders to %s\n", len(orders), csvPath)

	if *parquet {
		parquetPath := filepath.Join(*outDir, base+".parquet")
		if err := seed.WriteParquet(parquetPath, orders); err != nil {
			fmt.Fprintf(os.Stderr, "write parquet: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %d orders to %s\n", len(orders), parquetPath)
	}
}
