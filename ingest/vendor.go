package ingest

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradeledger/journal"
)

// Format names a statement layout, e.g. "cmc".
type Format string

// Shape is how a vendor lays out one logical record.
type Shape string

const (
	ShapeSingle Shape = "single" // one closed row per record
	ShapeSplit  Shape = "split"  // an open row and a close row share an id
)

// Field is a logical column of a statement.
type Field string

const (
	FieldID         Field = "id"
	FieldTime       Field = "time"
	FieldOpenTime   Field = "open_time"
	FieldCloseTime  Field = "close_time"
	FieldType       Field = "type"
	FieldSymbol     Field = "symbol"
	FieldLots       Field = "lots"
	FieldPrice      Field = "price"
	FieldOpenPrice  Field = "open_price"
	FieldClosePrice Field = "close_price"
	FieldProfit     Field = "profit"
	FieldCommission Field = "commission"
	FieldSwap       Field = "swap"
	FieldAmount     Field = "amount"
)

var amountFields = []Field{FieldPrice, FieldOpenPrice, FieldClosePrice, FieldProfit, FieldAmount}

// TypeRule maps one value of the type column to the record it describes.
type TypeRule struct {
	Kind      Kind              `yaml:"kind" json:"kind" validate:"required,oneof=trade transaction"`
	Leg       Leg               `yaml:"leg" json:"leg" validate:"required,oneof=open close single"`
	Direction journal.Direction `yaml:"direction,omitempty" json:"direction,omitempty" validate:"omitempty,oneof=buy sell"`
	TxType    journal.TxType    `yaml:"tx_type,omitempty" json:"tx_type,omitempty"`
}

// Vendor describes a statement layout: which column holds what, and how
// numbers and times are written.
type Vendor struct {
	Format     Format              `yaml:"format" json:"format" validate:"required"`
	Shape      Shape               `yaml:"shape" json:"shape" validate:"required,oneof=single split"`
	Comma      string              `yaml:"comma,omitempty" json:"comma,omitempty" validate:"omitempty,len=1"`
	TimeLayout string              `yaml:"time_layout" json:"time_layout" validate:"required"`
	Location   string              `yaml:"location,omitempty" json:"location,omitempty"`
	Decimal    string              `yaml:"decimal,omitempty" json:"decimal,omitempty" validate:"omitempty,len=1"`
	Thousands  string              `yaml:"thousands,omitempty" json:"thousands,omitempty" validate:"omitempty,len=1"`
	HeaderRows int                 `yaml:"header_rows" json:"header_rows" validate:"gte=0"`
	Columns    map[Field]int       `yaml:"columns" json:"columns" validate:"required,dive,gte=0"`
	Types      map[string]TypeRule `yaml:"types" json:"types" validate:"required,min=1,dive"`

	loc *time.Location
}

var validate = validator.New()

// Validate checks the layout and resolves its location.
func (v *Vendor) Validate() error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("vendor %q: %w", v.Format, err)
	}

	var errs []error
	for _, f := range []Field{FieldID, FieldTime, FieldType} {
		if _, ok := v.Columns[f]; !ok {
			errs = append(errs, fmt.Errorf("column %s is required", f))
		}
	}
	hasAmount := false
	for _, f := range amountFields {
		if _, ok := v.Columns[f]; ok {
			hasAmount = true
		}
	}
	if !hasAmount {
		errs = append(errs, errors.New("at least one of price, open_price, close_price, profit or amount is required"))
	}
	for tok, r := range v.Types {
		if tok != strings.ToLower(strings.TrimSpace(tok)) {
			errs = append(errs, fmt.Errorf("type %q must be lower case and trimmed", tok))
		}
		if r.Kind == KindTrade && r.Direction == "" {
			errs = append(errs, fmt.Errorf("type %q: trade needs a direction", tok))
		}
		if r.Kind == KindTransaction && r.TxType == "" {
			errs = append(errs, fmt.Errorf("type %q: transaction needs a tx_type", tok))
		}
	}
	if v.Location != "" {
		loc, err := time.LoadLocation(v.Location)
		if err != nil {
			errs = append(errs, fmt.Errorf("location: %w", err))
		}
		v.loc = loc
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("vendor %q: %w", v.Format, err)
	}
	return nil
}

// CommaRune is the field separator for delimited exports.
func (v *Vendor) CommaRune() rune {
	if v.Comma == "" {
		return ','
	}
	return []rune(v.Comma)[0]
}

func (v *Vendor) location(acct Account) *time.Location {
	switch {
	case v.loc != nil:
		return v.loc
	case acct.Location != nil:
		return acct.Location
	default:
		return time.UTC
	}
}

// BuiltinVendors returns fresh copies of the layouts shipped with the tool.
func BuiltinVendors() []*Vendor {
	return []*Vendor{
		{
			// MetaTrader account history: one row per closed position.
			Format:     "metatrader",
			Shape:      ShapeSingle,
			TimeLayout: "2006.01.02 15:04:05",
			Decimal:    ".",
			HeaderRows: 1,
			Columns: map[Field]int{
				FieldID: 0, FieldTime: 1, FieldOpenTime: 1, FieldType: 2, FieldLots: 3,
				FieldSymbol: 4, FieldOpenPrice: 5, FieldCloseTime: 8, FieldClosePrice: 9,
				FieldCommission: 10, FieldSwap: 12, FieldProfit: 13,
			},
			Types: map[string]TypeRule{
				"buy":     {Kind: KindTrade, Leg: LegSingle, Direction: journal.Buy},
				"sell":    {Kind: KindTrade, Leg: LegSingle, Direction: journal.Sell},
				"balance": {Kind: KindTransaction, Leg: LegSingle, TxType: "balance"},
			},
		},
		{
			// CMC Markets statement: opening and closing rows share the trade id.
			Format:     "cmc",
			Shape:      ShapeSplit,
			TimeLayout: "02/01/2006 15:04:05",
			Location:   "Europe/London",
			Decimal:    ".",
			Thousands:  ",",
			HeaderRows: 1,
			Columns: map[Field]int{
				FieldTime: 0, FieldType: 1, FieldID: 2, FieldSymbol: 3, FieldLots: 4,
				FieldPrice: 5, FieldProfit: 6, FieldCommission: 7, FieldSwap: 8, FieldAmount: 9,
			},
			Types: map[string]TypeRule{
				"buy":                {Kind: KindTrade, Leg: LegOpen, Direction: journal.Buy},
				"sell":               {Kind: KindTrade, Leg: LegOpen, Direction: journal.Sell},
				"close buy":          {Kind: KindTrade, Leg: LegClose, Direction: journal.Buy},
				"close sell":         {Kind: KindTrade, Leg: LegClose, Direction: journal.Sell},
				"deposit pending":    {Kind: KindTransaction, Leg: LegOpen, TxType: "deposit"},
				"withdrawal pending": {Kind: KindTransaction, Leg: LegOpen, TxType: "withdrawal"},
				"deposit":            {Kind: KindTransaction, Leg: LegClose, TxType: "deposit"},
				"withdrawal":         {Kind: KindTransaction, Leg: LegClose, TxType: "withdrawal"},
			},
		},
		{
			// XTB cash operations export, semicolon separated.
			Format:     "xtb",
			Shape:      ShapeSplit,
			Comma:      ";",
			TimeLayout: "02.01.2006 15:04:05",
			Location:   "Europe/Warsaw",
			Decimal:    ",",
			Thousands:  " ",
			HeaderRows: 1,
			Columns: map[Field]int{
				FieldID: 0, FieldType: 1, FieldTime: 2, FieldSymbol: 3, FieldLots: 4,
				FieldPrice: 5, FieldProfit: 6, FieldCommission: 7, FieldSwap: 8, FieldAmount: 9,
			},
			Types: map[string]TypeRule{
				"open buy":   {Kind: KindTrade, Leg: LegOpen, Direction: journal.Buy},
				"open sell":  {Kind: KindTrade, Leg: LegOpen, Direction: journal.Sell},
				"close buy":  {Kind: KindTrade, Leg: LegClose, Direction: journal.Buy},
				"close sell": {Kind: KindTrade, Leg: LegClose, Direction: journal.Sell},
				"deposit":    {Kind: KindTransaction, Leg: LegSingle, TxType: "deposit"},
				"withdrawal": {Kind: KindTransaction, Leg: LegSingle, TxType: "withdrawal"},
				"dividend":   {Kind: KindTransaction, Leg: LegSingle, TxType: "dividend"},
			},
		},
	}
}

// Registry resolves formats to vendor layouts.
type Registry struct {
	vendors map[Format]*Vendor
}

// NewRegistry validates the built-in vendors and any custom ones. A custom
// vendor replaces a built-in one with the same format.
func NewRegistry(custom ...*Vendor) (*Registry, error) {
	r := &Registry{vendors: make(map[Format]*Vendor)}
	for _, v := range append(BuiltinVendors(), custom...) {
		if err := v.Validate(); err != nil {
			return nil, err
		}
		r.vendors[Format(strings.ToLower(string(v.Format)))] = v
	}
	return r, nil
}

func (r *Registry) Lookup(f Format) (*Vendor, error) {
	v, ok := r.vendors[Format(strings.ToLower(string(f)))]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (known: %s)", f, strings.Join(r.formatNames(), ", "))
	}
	return v, nil
}

// Formats lists the registered formats in name order.
func (r *Registry) Formats() []Format {
	out := make([]Format, 0, len(r.vendors))
	for f := range r.vendors {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) formatNames() []string {
	var names []string
	for _, f := range r.Formats() {
		names = append(names, string(f))
	}
	return names
}

// LoadVendors reads custom layouts from a YAML file holding a list of vendors.
func LoadVendors(path string) ([]*Vendor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vendors: %w", err)
	}
	var out []*Vendor
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse vendors %s: %w", path, err)
	}
	return out, nil
}
