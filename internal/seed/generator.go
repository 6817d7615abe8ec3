// Package seed generates the demo master order dataset used for local
// development and the end-to-end walkthrough.
package seed

import (
	"fmt"
	"math/rand"
	"time"
)

// Order is one row of the master dataset. Field names match the CSV header
// the prompt template describes.
type Order struct {
	Codice               string  `parquet:"Codice"`
	NomeECognome         string  `parquet:"Nome_e_Cognome"`
	Prodotto             string  `parquet:"Prodotto"`
	Quantita             int32   `parquet:"Quantita"`
	Prezzo               float64 `parquet:"Prezzo"`
	StatoSpedizione      string  `parquet:"Stato_Spedizione"`
	DataOrdine           string  `parquet:"Data_Ordine"`
	DataConsegnaPrevista string  `parquet:"Data_Consegna_Prevista"`
}

var Columns = []string{
	"Codice", "Nome_e_Cognome", "Prodotto", "Quantita",
	"Prezzo", "Stato_Spedizione", "Data_Ordine", "Data_Consegna_Prevista",
}

type Generator struct {
	rnd      *rand.Rand
	sequence int
	now      time.Time
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(seed)),
		now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

var customers = []string{
	"Maria Rossi", "Luca Bianchi", "Giulia Ferrari", "Marco Esposito",
	"Sara Romano", "Andrea Colombo", "Elena Ricci", "Paolo Greco",
}

var products = []string{
	"Lampada", "Tavolo", "Sedia", "Libreria", "Scrivania", "Divano", "Specchio",
}

var statuses = []string{
	"In transito", "Consegnato", "In preparazione", "In dogana",
}

// Dataset produces n orders plus a fixed well-known order for Maria Rossi
// (code 1R2176985) so the documented login scenario always works.
func (g *Generator) Dataset(n int) []Order {
	orders := make([]Order, 0, n+1)
	orders = append(orders, Order{
		Codice:               "1R2176985",
		NomeECognome:         "Maria Rossi",
		Prodotto:             "Lampada",
		Quantita:             2,
		Prezzo:               49.90,
		StatoSpedizione:      "In transito",
		DataOrdine:           "2024-04-12",
		DataConsegnaPrevista: "2024-05-03",
	})
	for i := 0; i < n; i++ {
		orders = append(orders, g.next())
	}
	return orders
}

func (g *Generator) next() Order {
	g.sequence++
	ordered := g.now.AddDate(0, 0, -g.rnd.Intn(90))
	expected := ordered.AddDate(0, 0, 7+g.rnd.Intn(21))
	return Order{
		Codice:               fmt.Sprintf("1R2%06d", 100000+g.sequence),
		NomeECognome:         pickOne(g.rnd, customers),
		Prodotto:             pickOne(g.rnd, products),
		Quantita:             int32(1 + g.rnd.Intn(5)),
		Prezzo:               float64(10+g.rnd.Intn(490)) + 0.90,
		StatoSpedizione:      pickOne(g.rnd, statuses),
		DataOrdine:           ordered.Format("2006-01-02"),
		DataConsegnaPrevista: expected.Format("2006-01-02"),
	}
}

func pickOne(rnd *rand.Rand, values []string) string {
	return values[rnd.Intn(len(values))]
}
