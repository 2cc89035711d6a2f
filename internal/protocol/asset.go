package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"
)

// Symbol names a currency and the number of decimal places it is quoted with.
type Symbol struct {
	Name      string
	Precision uint8
}

var (
	GolosSymbol = Symbol{Name: "GOLOS", Precision: 3}
	GBGSymbol   = Symbol{Name: "GBG", Precision: 3}
	GestsSymbol = Symbol{Name: "GESTS", Precision: 6}
)

var knownSymbols = map[string]Symbol{
	GolosSymbol.Name: GolosSymbol,
	GBGSymbol.Name:   GBGSymbol,
	GestsSymbol.Name: GestsSymbol,
}

// LookupSymbol returns the registered symbol with the given name.
func LookupSymbol(name string) (Symbol, bool) {
	s, ok := knownSymbols[name]
	return s, ok
}

func (s Symbol) scale() int64 {
	return int64(math.Pow10(int(s.Precision)))
}

// Asset is an integer amount of the smallest unit of a symbol.
type Asset struct {
	Amount int64
	Symbol Symbol
}

func NewAsset(amount int64, symbol Symbol) Asset {
	return Asset{Amount: amount, Symbol: symbol}
}

// ParseAsset reads the "10.000 GOLOS" notation. The precision is taken
// from the number of decimals written, so unknown symbols round-trip.
func ParseAsset(s string) (Asset, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Asset{}, fmt.Errorf("invalid asset %q", s)
	}
	num, name := fields[0], fields[1]
	if name == "" || len(name) > 14 || strings.ToUpper(name) != name {
		return Asset{}, fmt.Errorf("invalid asset symbol %q", name)
	}

	neg := strings.HasPrefix(num, "-")
	num = strings.TrimPrefix(num, "-")

	intPart, fracPart := num, ""
	if dot := strings.IndexByte(num, '.'); dot >= 0 {
		intPart, fracPart = num[:dot], num[dot+1:]
	}
	if intPart == "" {
		return Asset{}, fmt.Errorf("invalid asset amount %q", s)
	}
	if len(fracPart) > 18 {
		return Asset{}, fmt.Errorf("asset precision too large in %q", s)
	}

	digits := intPart + fracPart
	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Asset{}, fmt.Errorf("invalid asset amount %q: %w", s, err)
	}
	if neg {
		amount = -amount
	}
	return Asset{Amount: amount, Symbol: Symbol{Name: name, Precision: uint8(len(fracPart))}}, nil
}

// MustParseAsset is ParseAsset for literals known to be valid.
func MustParseAsset(s string) Asset {
	a, err := ParseAsset(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Asset) String() string {
	sign := ""
	amount := a.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if a.Symbol.Precision == 0 {
		return fmt.Sprintf("%s%d %s", sign, amount, a.Symbol.Name)
	}
	scale := a.Symbol.scale()
	return fmt.Sprintf("%s%d.%0*d %s", sign, amount/scale, int(a.Symbol.Precision), amount%scale, a.Symbol.Name)
}

// ToReal converts the amount into whole units.
func (a Asset) ToReal() float64 {
	return float64(a.Amount) / float64(a.Symbol.scale())
}

func (a Asset) IsZero() bool { return a.Amount == 0 }

// Add sums two assets of the same symbol.
func (a Asset) Add(b Asset) (Asset, error) {
	if a.Symbol != b.Symbol {
		return Asset{}, fmt.Errorf("cannot add %s to %s", b.Symbol.Name, a.Symbol.Name)
	}
	return Asset{Amount: a.Amount + b.Amount, Symbol: a.Symbol}, nil
}

func (a Asset) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(a.String())
}

func (a *Asset) UnmarshalJSON(data []byte) error {
	var s string
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("asset must be a string: %w", err)
	}
	parsed, err := ParseAsset(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Price is the ratio Base/Quote, as published by feeds and limit orders.
type Price struct {
	Base  Asset `json:"base"`
	Quote Asset `json:"quote"`
}

func (p Price) IsNull() bool {
	return p.Base.Amount == 0 || p.Quote.Amount == 0
}

// ToReal returns base per quote in whole units.
func (p Price) ToReal() float64 {
	if p.Quote.Amount == 0 {
		return 0
	}
	return p.Base.ToReal() / p.Quote.ToReal()
}

// Convert multiplies an asset by the price, flooring to the target unit.
// The asset must be denominated in either side of the price.
func (p Price) Convert(a Asset) (Asset, error) {
	if p.IsNull() {
		return Asset{}, fmt.Errorf("cannot convert with a null price")
	}
	var from, to Asset
	switch a.Symbol {
	case p.Base.Symbol:
		from, to = p.Base, p.Quote
	case p.Quote.Symbol:
		from, to = p.Quote, p.Base
	default:
		return Asset{}, fmt.Errorf("asset %s does not match price %s/%s", a.Symbol.Name, p.Base.Symbol.Name, p.Quote.Symbol.Name)
	}
	if a.Amount < 0 || from.Amount < 0 || to.Amount < 0 {
		return Asset{}, fmt.Errorf("negative amounts cannot be converted")
	}

	r := new(uint256.Int).Mul(uint256.NewInt(uint64(a.Amount)), uint256.NewInt(uint64(to.Amount)))
	r.Div(r, uint256.NewInt(uint64(from.Amount)))
	if !r.IsUint64() || r.Uint64() > math.MaxInt64 {
		return Asset{}, fmt.Errorf("conversion overflow")
	}
	return Asset{Amount: int64(r.Uint64()), Symbol: to.Symbol}, nil
}
