package cache

import (
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rustyeddy/tradeledger/market"
	"github.com/rustyeddy/tradeledger/stats"
)

// Times are kept as unix seconds plus one location name so bucket edges
// come back in the report's location.
type reportDTO struct {
	Granularity string      `msgpack:"g"`
	Filter      string      `msgpack:"f"`
	Location    string      `msgpack:"loc"`
	Start       int64       `msgpack:"s"`
	End         int64       `msgpack:"e"`
	Records     []recordDTO `msgpack:"r"`
	Totals      totalsDTO   `msgpack:"t"`
	Incomplete  int         `msgpack:"i"`
}

type recordDTO struct {
	Start  int64     `msgpack:"s"`
	End    int64     `msgpack:"e"`
	Totals totalsDTO `msgpack:"t"`
}

type totalsDTO struct {
	Trades      int    `msgpack:"n"`
	Wins        int    `msgpack:"w"`
	Losses      int    `msgpack:"l"`
	Breakeven   int    `msgpack:"b"`
	NetResult   string `msgpack:"net"`
	LargestWin  string `msgpack:"lw"`
	LargestLoss string `msgpack:"ll"`
}

func toTotalsDTO(t stats.Totals) totalsDTO {
	return totalsDTO{
		Trades:      t.Trades,
		Wins:        t.Wins,
		Losses:      t.Losses,
		Breakeven:   t.Breakeven,
		NetResult:   t.NetResult.String(),
		LargestWin:  t.LargestWin.String(),
		LargestLoss: t.LargestLoss.String(),
	}
}

func (d totalsDTO) totals() (stats.Totals, error) {
	t := stats.Totals{Trades: d.Trades, Wins: d.Wins, Losses: d.Losses, Breakeven: d.Breakeven}
	var err error
	if t.NetResult, err = decimal.NewFromString(d.NetResult); err != nil {
		return t, err
	}
	if t.LargestWin, err = decimal.NewFromString(d.LargestWin); err != nil {
		return t, err
	}
	t.LargestLoss, err = decimal.NewFromString(d.LargestLoss)
	return t, err
}

func encodeReport(r *stats.Report) ([]byte, error) {
	loc := time.UTC
	if !r.Range.IsZero() {
		loc = r.Range.Start.Location()
	} else if len(r.Records) > 0 {
		loc = r.Records[0].Start.Location()
	}

	dto := reportDTO{
		Granularity: string(r.Granularity),
		Filter:      string(r.Filter),
		Location:    loc.String(),
		Totals:      toTotalsDTO(r.Totals),
		Incomplete:  r.Incomplete,
		Records:     make([]recordDTO, len(r.Records)),
	}
	if !r.Range.IsZero() {
		dto.Start, dto.End = r.Range.Start.Unix(), r.Range.End.Unix()
	}
	for i, rec := range r.Records {
		dto.Records[i] = recordDTO{Start: rec.Start.Unix(), End: rec.End.Unix(), Totals: toTotalsDTO(rec.Totals)}
	}
	return msgpack.Marshal(&dto)
}

func decodeReport(data []byte) (*stats.Report, error) {
	var dto reportDTO
	if err := msgpack.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(dto.Location)
	if err != nil {
		return nil, err
	}

	r := &stats.Report{
		Granularity: stats.Granularity(dto.Granularity),
		Filter:      stats.Filter(dto.Filter),
		Incomplete:  dto.Incomplete,
	}
	if dto.Start != 0 || dto.End != 0 {
		r.Range = market.Range{Start: time.Unix(dto.Start, 0).In(loc), End: time.Unix(dto.End, 0).In(loc)}
	}
	if r.Totals, err = dto.Totals.totals(); err != nil {
		return nil, err
	}
	if len(dto.Records) > 0 {
		r.Records = make([]stats.TradeRecord, len(dto.Records))
	}
	for i, rec := range dto.Records {
		t, err := rec.Totals.totals()
		if err != nil {
			return nil, err
		}
		r.Records[i] = stats.TradeRecord{
			Start:  time.Unix(rec.Start, 0).In(loc),
			End:    time.Unix(rec.End, 0).In(loc),
			Totals: t,
		}
	}
	return r, nil
}
