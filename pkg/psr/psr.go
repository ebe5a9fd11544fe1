// Package psr defines the taxonomy of production source types (PSR types)
// used by generation reports and the mapping to short tickers.
package psr

import (
	"slices"
	"strings"
)

// Type is a provider PSR type code such as B04.
type Type string

// PSR type codes.
const (
	Biomass          Type = "B01"
	Lignite          Type = "B02"
	GasifiedCoal     Type = "B03"
	FossilGas        Type = "B04"
	HardCoal         Type = "B05"
	Oil              Type = "B06"
	OilShale         Type = "B07"
	Peat             Type = "B08"
	Geothermal       Type = "B09"
	HydroPumped      Type = "B10"
	HydroRunOfRiver  Type = "B11"
	HydroReservoir   Type = "B12"
	Marine           Type = "B13"
	Nuclear          Type = "B14"
	OtherRenewable   Type = "B15"
	Solar            Type = "B16"
	Waste            Type = "B17"
	WindOffshore     Type = "B18"
	WindOnshore      Type = "B19"
	Other            Type = "B20"
	unknownTypeToken Type = ""
)

// aliases are provider codes known to be data-entry variants of a canonical
// code.
var aliases = map[Type]Type{
	"BO3": GasifiedCoal,
}

var tickers = map[Type]string{
	Biomass:         "BIOD",
	Lignite:         "LIGN",
	GasifiedCoal:    "COAG",
	FossilGas:       "CCGT",
	HardCoal:        "COAL",
	Oil:             "OILS",
	OilShale:        "SHAL",
	Peat:            "PEAT",
	Geothermal:      "GEOT",
	HydroPumped:     "HYPS",
	HydroRunOfRiver: "HYRR",
	HydroReservoir:  "HYRS",
	Marine:          "TIDE",
	Nuclear:         "NUCL",
	OtherRenewable:  "OTHR",
	Solar:           "PVUT",
	Waste:           "WSTE",
	WindOffshore:    "WDOF",
	WindOnshore:     "WDON",
	Other:           "OTHE",
}

// displayNames maps tickers, including the ones of modelled series, to
// human readable names.
var displayNames = map[string]string{
	"BIOD":    "Biomass",
	"LIGN":    "Lignite",
	"COAG":    "Gasified Coal",
	"CCGT":    "Natural gas",
	"COAL":    "Coal",
	"OILS":    "Oil products",
	"SHAL":    "Shale gas",
	"PEAT":    "Peat",
	"GEOT":    "Geothermal",
	"HYPS":    "Hydro Pumped Storage",
	"HYRR":    "Hydro Run-of-river",
	"HYRS":    "Hydro Reservoir",
	"TIDE":    "Ocean energy",
	"NUCL":    "Nuclear",
	"OTHR":    "Other Renewable",
	"PVUT":    "PV Utility",
	"WSTE":    "Waste",
	"WDOF":    "Wind Offshore",
	"WDON":    "Wind Onshore Imp",
	"OTHE":    "Other Fossil",
	"PVFI_NL": "PV Fields NL",
	"PVRO_NL": "PV Rooftop NL",
	"WDNS_NL": "Wind Onshore NL",
}

// displayGroups collapses related tickers into a single presentation group.
var displayGroups = map[string]string{
	"PVUT":    "PV",
	"PVFI_NL": "PV",
	"PVRO_NL": "PV",
	"HYPS":    "Hydropower",
	"HYRR":    "Hydropower",
	"HYRS":    "Hydropower",
	"WDON":    "Wind Onshore",
	"WDNS_NL": "Wind Onshore",
}

// Canonical returns the canonical code of t, resolving known aliases and
// surrounding white space.
func Canonical(t Type) Type {
	t = Type(strings.TrimSpace(string(t)))
	if c, ok := aliases[t]; ok {
		return c
	}

	return t
}

// Known returns true when t (after alias resolution) is part of the taxonomy.
func Known(t Type) bool {
	_, ok := tickers[Canonical(t)]

	return ok
}

// Ticker returns the short ticker of t. Unknown codes are returned as is.
func (t Type) Ticker() string {
	if ticker, ok := tickers[Canonical(t)]; ok {
		return ticker
	}

	return string(t)
}

// Types returns all canonical codes in ascending order.
func Types() []Type {
	types := make([]Type, 0, len(tickers))
	for t := range tickers {
		types = append(types, t)
	}

	slices.Sort(types)

	return types
}

// FromTicker returns the code for a ticker.
func FromTicker(ticker string) (Type, bool) {
	for t, tk := range tickers {
		if tk == ticker {
			return t, true
		}
	}

	return unknownTypeToken, false
}

// DisplayName returns a human readable name of a ticker.
func DisplayName(ticker string) string {
	if name, ok := displayNames[ticker]; ok {
		return name
	}

	return ticker
}

// DisplayGroup returns the presentation group of a ticker.
func DisplayGroup(ticker string) string {
	if group, ok := displayGroups[ticker]; ok {
		return group
	}

	return DisplayName(ticker)
}

// Column returns the matrix column name of a ticker for a zone.
func Column(ticker, zone string) string {
	return ticker + "_" + zone
}

// SplitColumn splits a matrix column into ticker and zone. Columns of
// modelled series such as WDNS_NL have their own ticker, so a column is
// only split when its prefix is a taxonomy ticker.
func SplitColumn(column string) (string, string) {
	idx := strings.Index(column, "_")
	if idx < 0 {
		return column, ""
	}

	if _, ok := FromTicker(column[:idx]); ok {
		return column[:idx], column[idx+1:]
	}

	return column, ""
}
