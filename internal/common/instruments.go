// Package common provides shared utilities across the application.
package common

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Instrument represents a parsed exchange-qualified instrument.
// Format: EXCHANGE:CODE (e.g., "NASDAQ:AAPL", "NYSEARCA:SPY")
type Instrument struct {
	// Exchange is the exchange code (e.g., "NASDAQ", "NYSE")
	Exchange string
	// Code is the ticker code (e.g., "AAPL", "SPY")
	Code string
	// Raw is the original instrument string
	Raw string
}

// DefaultSearchExchanges are tried in order when resolving a bare code to
// an exchange-qualified chart symbol.
var DefaultSearchExchanges = []string{"NASDAQ", "NYSE", "AMEX", "NYSEARCA"}

var codePattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// ParseInstrument parses an exchange-qualified instrument string.
// Supports formats:
//   - "NASDAQ:AAPL" -> Exchange="NASDAQ", Code="AAPL"
//   - "$SPY" / "spy" -> Exchange="", Code="SPY" (normalized to uppercase)
func ParseInstrument(s string) Instrument {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return Instrument{}
	}

	if idx := strings.Index(s, ":"); idx > 0 {
		return Instrument{
			Exchange: strings.ToUpper(s[:idx]),
			Code:     strings.ToUpper(s[idx+1:]),
			Raw:      s,
		}
	}

	return Instrument{
		Code: strings.ToUpper(s),
		Raw:  s,
	}
}

// String returns the exchange-qualified instrument string.
func (i Instrument) String() string {
	if i.Exchange == "" || i.Code == "" {
		return i.Code
	}
	return i.Exchange + ":" + i.Code
}

// Valid reports whether the code looks like a plain US ticker.
func (i Instrument) Valid() bool {
	return codePattern.MatchString(i.Code)
}

// InstrumentMap holds instrument aliases, the never-post blacklist and
// the exchange search order. Loaded from a YAML mapping file; zero value
// falls back to built-in defaults.
type InstrumentMap struct {
	// Aliases maps spoken-form instruments from LLM output onto tradeable
	// proxy tickers (e.g., OIL -> USO)
	Aliases map[string]string `yaml:"aliases"`
	// Blacklist lists codes that are never posted
	Blacklist []string `yaml:"blacklist"`
	// Exchanges overrides the exchange search order
	Exchanges []string `yaml:"exchanges"`
}

// DefaultInstrumentMap returns the built-in macro proxies and blacklist.
func DefaultInstrumentMap() *InstrumentMap {
	return &InstrumentMap{
		Aliases: map[string]string{
			"OIL":         "USO",
			"CRUDE":       "USO",
			"WTI":         "USO",
			"GOLD":        "GLD",
			"SILVER":      "SLV",
			"COMMODITIES": "DBC",
			"DOLLAR":      "UUP",
			"USD":         "UUP",
			"BONDS":       "TLT",
			"TREASURIES":  "TLT",
			"TIPS":        "TIP",
			"SP500":       "SPY",
			"S&P500":      "SPY",
			"NASDAQ100":   "QQQ",
		},
		Blacklist: []string{"GOOG", "GOOGL", "META", "TSLA"},
		Exchanges: DefaultSearchExchanges,
	}
}

// LoadInstrumentMap reads the YAML mapping file, merging it over the
// defaults. A missing file returns the defaults without error.
func LoadInstrumentMap(path string) (*InstrumentMap, error) {
	m := DefaultInstrumentMap()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to read instrument mapping file %s: %w", path, err)
	}

	var fileMap InstrumentMap
	if err := yaml.Unmarshal(data, &fileMap); err != nil {
		return nil, fmt.Errorf("failed to parse instrument mapping file %s: %w", path, err)
	}

	for alias, code := range fileMap.Aliases {
		m.Aliases[strings.ToUpper(alias)] = strings.ToUpper(code)
	}
	if len(fileMap.Blacklist) > 0 {
		m.Blacklist = append(m.Blacklist, fileMap.Blacklist...)
	}
	if len(fileMap.Exchanges) > 0 {
		m.Exchanges = fileMap.Exchanges
	}

	return m, nil
}

// Normalize resolves a raw instrument string from LLM output into a
// postable instrument. Returns false when the instrument is empty,
// blacklisted, or not a plausible ticker after alias resolution.
func (m *InstrumentMap) Normalize(raw string) (Instrument, bool) {
	inst := ParseInstrument(raw)
	if inst.Code == "" {
		return Instrument{}, false
	}

	if proxy, ok := m.Aliases[inst.Code]; ok {
		inst = Instrument{Exchange: inst.Exchange, Code: proxy, Raw: inst.Raw}
	}

	for _, blocked := range m.Blacklist {
		if strings.EqualFold(blocked, inst.Code) {
			return Instrument{}, false
		}
	}

	if !inst.Valid() {
		return Instrument{}, false
	}

	return inst, true
}

// SearchExchanges returns the exchange order for symbol resolution.
func (m *InstrumentMap) SearchExchanges() []string {
	if len(m.Exchanges) > 0 {
		return m.Exchanges
	}
	return DefaultSearchExchanges
}
