package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBuiltins(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry()
	require.NoError(t, err)

	assert.Equal(t, []Format{"cmc", "metatrader", "xtb"}, reg.Formats())

	v, err := reg.Lookup("CMC")
	require.NoError(t, err)
	assert.Equal(t, ShapeSplit, v.Shape)
	assert.Equal(t, ',', v.CommaRune())

	x, err := reg.Lookup("xtb")
	require.NoError(t, err)
	assert.Equal(t, ';', x.CommaRune())

	_, err = reg.Lookup("ibkr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cmc, metatrader, xtb")
}

const customVendors = `
- format: mybroker
  shape: split
  comma: "|"
  time_layout: "2006-01-02T15:04:05"
  location: America/New_York
  decimal: "."
  header_rows: 2
  columns:
    id: 0
    time: 1
    type: 2
    symbol: 3
    price: 4
  types:
    long:
      kind: trade
      leg: open
      direction: buy
    exit long:
      kind: trade
      leg: close
      direction: buy
- format: cmc
  shape: single
  time_layout: "2006-01-02"
  columns:
    id: 0
    time: 1
    type: 2
    profit: 3
  types:
    trade:
      kind: trade
      leg: single
      direction: buy
`

func TestLoadVendorsOverridesBuiltins(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vendors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(customVendors), 0o644))

	custom, err := LoadVendors(path)
	require.NoError(t, err)
	require.Len(t, custom, 2)

	reg, err := NewRegistry(custom...)
	require.NoError(t, err)

	v, err := reg.Lookup("mybroker")
	require.NoError(t, err)
	assert.Equal(t, '|', v.CommaRune())
	assert.Equal(t, 2, v.HeaderRows)
	assert.Equal(t, 4, v.Columns[FieldPrice])
	assert.Equal(t, LegClose, v.Types["exit long"].Leg)
	require.NotNil(t, v.loc)
	assert.Equal(t, "America/New_York", v.loc.String())

	cmc, err := reg.Lookup("cmc")
	require.NoError(t, err)
	assert.Equal(t, ShapeSingle, cmc.Shape, "custom layout replaces the built-in one")
}

func TestVendorValidate(t *testing.T) {
	t.Parallel()

	base := func() *Vendor {
		return &Vendor{
			Format:     "x",
			Shape:      ShapeSplit,
			TimeLayout: "2006-01-02",
			Columns:    map[Field]int{FieldID: 0, FieldTime: 1, FieldType: 2, FieldAmount: 3},
			Types:      map[string]TypeRule{"in": {Kind: KindTransaction, Leg: LegSingle, TxType: "deposit"}},
		}
	}
	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(v *Vendor)
	}{
		{"no format", func(v *Vendor) { v.Format = "" }},
		{"bad shape", func(v *Vendor) { v.Shape = "triple" }},
		{"no layout", func(v *Vendor) { v.TimeLayout = "" }},
		{"long comma", func(v *Vendor) { v.Comma = ";;" }},
		{"negative column", func(v *Vendor) { v.Columns[FieldSymbol] = -1 }},
		{"missing id column", func(v *Vendor) { delete(v.Columns, FieldID) }},
		{"no amount column", func(v *Vendor) { delete(v.Columns, FieldAmount) }},
		{"no types", func(v *Vendor) { v.Types = nil }},
		{"upper case type", func(v *Vendor) { v.Types["IN"] = v.Types["in"] }},
		{"trade without direction", func(v *Vendor) { v.Types["buy"] = TypeRule{Kind: KindTrade, Leg: LegOpen} }},
		{"transaction without type", func(v *Vendor) { v.Types["out"] = TypeRule{Kind: KindTransaction, Leg: LegSingle} }},
		{"bad leg", func(v *Vendor) { v.Types["in"] = TypeRule{Kind: KindTransaction, Leg: "middle", TxType: "d"} }},
		{"bad location", func(v *Vendor) { v.Location = "Mars/Olympus" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base()
			tt.mutate(v)
			assert.Error(t, v.Validate())
		})
	}
}
