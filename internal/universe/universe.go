// Package universe defines the fixed trading universe: 50 symbols across
// three sectors. The universe is fixed at process start and never mutated.
package universe

import "sort"

// Sector names.
const (
	SectorTech     = "Tech"
	SectorEnergy   = "Energy"
	SectorMinerals = "Minerals"
)

var tech = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "AVGO", "CRM",
	"ADBE", "AMD", "INTC", "CSCO", "ORCL", "TXN", "QCOM", "IBM", "MU",
}

var energy = []string{
	"XOM", "CVX", "COP", "SLB", "EOG", "MPC", "PSX", "VLO",
	"OXY", "HAL", "DVN", "FANG", "HES", "BKR", "KMI", "WMB", "OKE",
}

var minerals = []string{
	"NEM", "GOLD", "FNV", "WPM", "AEM", "GFI", "KGC", "AU",
	"RGLD", "AGI", "FCX", "SCCO", "TECK", "BHP", "RIO", "NUE",
}

var sectors = map[string][]string{
	SectorTech:     tech,
	SectorEnergy:   energy,
	SectorMinerals: minerals,
}

var symbolToSector = func() map[string]string {
	m := make(map[string]string)
	for sector, symbols := range sectors {
		for _, sym := range symbols {
			m[sym] = sector
		}
	}
	return m
}()

// AllSymbols returns every symbol in the universe, sector by sector.
func AllSymbols() []string {
	all := make([]string, 0, len(symbolToSector))
	all = append(all, tech...)
	all = append(all, energy...)
	all = append(all, minerals...)
	return all
}

// SectorNames returns the sector names in stable sorted order.
func SectorNames() []string {
	names := make([]string, 0, len(sectors))
	for name := range sectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SectorOf returns the sector for a symbol, or "" if the symbol is not in
// the universe.
func SectorOf(symbol string) string {
	return symbolToSector[symbol]
}

// SymbolsInSector returns the members of a sector.
func SymbolsInSector(sector string) []string {
	return sectors[sector]
}

// Contains reports whether a symbol is part of the universe.
func Contains(symbol string) bool {
	_, ok := symbolToSector[symbol]
	return ok
}
