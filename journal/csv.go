package journal

import (
	"encoding/csv"
	"io"
	"time"
)

var tradeHeader = []string{
	"trade_id", "account_id", "external_id", "symbol", "direction", "lots",
	"entry_price", "exit_price", "open_time", "close_time", "points", "profit",
	"commission", "swap", "net_result", "complete",
}

var transactionHeader = []string{
	"tx_id", "account_id", "external_id", "type", "amount", "open_time", "close_time", "complete",
}

// WriteTradesCSV writes trades with a header row. Incomplete trades have an
// empty close_time.
func WriteTradesCSV(w io.Writer, trades []Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		err := cw.Write([]string{
			t.ID,
			t.Account,
			t.ExternalID,
			t.Symbol,
			string(t.Direction),
			t.Lots.String(),
			t.EntryPrice.String(),
			t.ExitPrice.String(),
			ts(t.OpenTime),
			ts(t.CloseTime),
			t.Points.String(),
			t.Profit.String(),
			t.Commission.String(),
			t.Swap.String(),
			t.NetResult.String(),
			yesNo(t.Complete),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteTransactionsCSV(w io.Writer, txs []Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(transactionHeader); err != nil {
		return err
	}
	for _, x := range txs {
		err := cw.Write([]string{
			x.ID,
			x.Account,
			x.ExternalID,
			string(x.Type),
			x.Amount.String(),
			ts(x.OpenTime),
			ts(x.CloseTime),
			yesNo(x.Complete),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
