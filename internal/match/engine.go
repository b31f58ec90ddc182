// Package match reconciles canonical live stations against the
// authoritative partner-site directory.
package match

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuelscout/fuelscout/internal/station"
	"github.com/fuelscout/fuelscout/pkg/geo"
)

// Default proximity thresholds in raw degree-space.
const (
	// DefaultInnerRadiusDeg accepts a candidate outright, no brand check.
	DefaultInnerRadiusDeg = 0.001

	// DefaultOuterRadiusDeg is the widest radius a brand-confirmed
	// candidate may sit at.
	DefaultOuterRadiusDeg = 0.01
)

// Config holds configuration for the matching engine.
type Config struct {
	// AllowDuplicateClaims permits two distinct live stations to claim
	// the same directory site, each producing its own reconciled entry.
	// When false (the default) the first claim wins and later matches to
	// the same site fall through to the unmatched set.
	AllowDuplicateClaims bool

	// InnerRadiusDeg and OuterRadiusDeg override the proximity
	// thresholds. Zero values take the defaults.
	InnerRadiusDeg float64
	OuterRadiusDeg float64

	// Logger for per-pass diagnostics.
	Logger zerolog.Logger

	// Now supplies the timestamp stamped onto synthesized entries.
	// Defaults to time.Now; tests inject a fixed clock.
	Now func() time.Time
}

// Engine reconciles live stations with directory sites. A configured
// engine is safe for concurrent use; each Match call is a pure pass over
// its inputs.
type Engine struct {
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewEngine creates a matching engine.
func NewEngine(cfg Config) *Engine {
	if cfg.InnerRadiusDeg == 0 {
		cfg.InnerRadiusDeg = DefaultInnerRadiusDeg
	}
	if cfg.OuterRadiusDeg == 0 {
		cfg.OuterRadiusDeg = DefaultOuterRadiusDeg
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{cfg: cfg, logger: cfg.Logger, now: now}
}

// Result is the outcome of one matching pass.
type Result struct {
	// Matched holds reconciled stations: live stations merged with their
	// directory site, plus synthesized entries for directory sites no
	// live station claimed.
	Matched []*station.Reconciled

	// Unmatched holds live stations that matched no directory site.
	// They never enter Matched; they remain available for fallback
	// display only.
	Unmatched []*station.Station

	// LiveCount is the number of Matched entries with live pricing.
	LiveCount int
}

// directoryIndex holds the three lookup maps built over the directory,
// all keyed with station.NormalizeKey.
type directoryIndex struct {
	byPostcode  map[string][]*station.Site
	byName      map[string][]*station.Site
	byBrandTown map[string][]*station.Site
}

func buildIndex(dir []*station.Site) *directoryIndex {
	idx := &directoryIndex{
		byPostcode:  make(map[string][]*station.Site),
		byName:      make(map[string][]*station.Site),
		byBrandTown: make(map[string][]*station.Site),
	}
	for _, s := range dir {
		if k := station.NormalizeKey(s.Postcode); k != "" {
			idx.byPostcode[k] = append(idx.byPostcode[k], s)
		}
		if k := station.NormalizeKey(s.Name); k != "" {
			idx.byName[k] = append(idx.byName[k], s)
		}
		if bt := brandTownKey(s.Brand, s.Town); bt != "" {
			idx.byBrandTown[bt] = append(idx.byBrandTown[bt], s)
		}
	}
	return idx
}

func brandTownKey(brand, town string) string {
	b := station.NormalizeKey(brand)
	t := station.NormalizeKey(town)
	if b == "" || t == "" {
		return ""
	}
	return b + "_" + t
}

// Match reconciles the live station list against the directory. The
// averages backfill prices onto directory sites no feed reported on.
// Given identical inputs the result is identical: strategies run in a
// fixed order and synthesized entries follow directory input order.
func (e *Engine) Match(live []*station.Station, dir []*station.Site, avg station.Averages) *Result {
	idx := buildIndex(dir)
	claimed := make(map[int]bool, len(dir))
	result := &Result{}

	for _, st := range live {
		site := e.resolve(st, dir, idx)
		if site == nil {
			result.Unmatched = append(result.Unmatched, st)
			continue
		}
		if claimed[site.SiteNo] && !e.cfg.AllowDuplicateClaims {
			result.Unmatched = append(result.Unmatched, st)
			continue
		}
		claimed[site.SiteNo] = true
		result.Matched = append(result.Matched, merge(st, site))
	}

	// Directory sites nobody claimed become synthetic entries carrying
	// the national averages, but only when the site can actually sell
	// petrol or diesel.
	for _, site := range dir {
		if claimed[site.SiteNo] || (!site.Petrol && !site.Diesel) {
			continue
		}
		result.Matched = append(result.Matched, e.synthesize(site, avg))
	}

	for _, r := range result.Matched {
		if r.HasLivePricing {
			result.LiveCount++
		}
	}

	e.logger.Debug().
		Int("live", len(live)).
		Int("directory", len(dir)).
		Int("matched", len(result.Matched)).
		Int("unmatched", len(result.Unmatched)).
		Int("live_count", result.LiveCount).
		Msg("matching pass complete")

	return result
}

// resolve attempts the match strategies in fixed order, stopping at the
// first success: postcode, then planar proximity, then brand+town.
func (e *Engine) resolve(st *station.Station, dir []*station.Site, idx *directoryIndex) *station.Site {
	if site := e.matchByPostcode(st, idx); site != nil {
		return site
	}
	if site := e.matchByProximity(st, dir); site != nil {
		return site
	}
	return e.matchByBrandTown(st, idx)
}

// matchByPostcode takes a sole postcode candidate as-is; with several
// candidates it prefers the one whose brand matches, else the first.
func (e *Engine) matchByPostcode(st *station.Station, idx *directoryIndex) *station.Site {
	key := station.NormalizeKey(st.Postcode)
	if key == "" {
		return nil
	}
	candidates := idx.byPostcode[key]
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return candidates[0]
	}
	brand := station.NormalizeKey(st.Brand)
	for _, c := range candidates {
		if station.NormalizeKey(c.Brand) == brand {
			return c
		}
	}
	return candidates[0]
}

// matchByProximity scans every directory site for the nearest qualifying
// candidate. A site qualifies outright inside the inner radius; inside
// the outer radius it also needs a brand-name overlap. The acceptance
// threshold tightens to the best distance found so far, so this is a
// greedy nearest-qualifying search, not nearest-overall.
func (e *Engine) matchByProximity(st *station.Station, dir []*station.Site) *station.Site {
	// Both-zero is the "location unknown" sentinel. A lone zero
	// longitude is a real UK coordinate on the Greenwich meridian.
	if st.Lat == 0 && st.Lon == 0 {
		return nil
	}

	var best *station.Site
	bestDist := e.cfg.OuterRadiusDeg

	for _, site := range dir {
		d := geo.PlanarProximity(st.Lat, st.Lon, site.Lat, site.Lon)
		if d >= bestDist {
			continue
		}
		if d <= e.cfg.InnerRadiusDeg || brandsOverlap(st.Brand, site.Brand) {
			best = site
			bestDist = d
		}
	}
	return best
}

func (e *Engine) matchByBrandTown(st *station.Station, idx *directoryIndex) *station.Site {
	key := brandTownKey(st.Brand, st.Town)
	if key == "" {
		return nil
	}
	if candidates := idx.byBrandTown[key]; len(candidates) > 0 {
		return candidates[0]
	}
	return nil
}

// brandsOverlap reports whether either brand name contains the other,
// case-insensitively. "ESSO" matches "Esso Tesco Alliance" both ways.
func brandsOverlap(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

// merge builds a reconciled station from a matched pair. Identity and
// location come from the authoritative site; prices and freshness come
// from the live feed.
func merge(st *station.Station, site *station.Site) *station.Reconciled {
	merged := *st
	merged.Name = site.Name
	merged.Address = site.Street
	merged.Town = site.Town
	merged.Postcode = site.Postcode
	merged.Lat = site.Lat
	merged.Lon = site.Lon
	if site.Brand != "" {
		merged.Brand = site.Brand
	}

	return &station.Reconciled{
		Station:        merged,
		SiteNo:         site.SiteNo,
		HasLivePricing: true,
		Hours24:        site.Hours24,
		HGVAccess:      site.HGVAccess,
		Bands:          site.Bands,
	}
}

// synthesize builds a reconciled entry for a directory site no live feed
// covered, backfilling the national averages for the fuels it sells.
func (e *Engine) synthesize(site *station.Site, avg station.Averages) *station.Reconciled {
	st := station.Station{
		ID:          "directory-" + strconv.Itoa(site.SiteNo),
		Brand:       site.Brand,
		Name:        site.Name,
		Address:     site.Street,
		Postcode:    site.Postcode,
		Town:        site.Town,
		Lat:         site.Lat,
		Lon:         site.Lon,
		LastUpdated: e.now(),
		IsOpen:      true,
	}
	if site.Petrol {
		p := avg.Petrol
		st.PetrolPrice = &p
	}
	if site.Diesel {
		d := avg.Diesel
		st.DieselPrice = &d
	}

	return &station.Reconciled{
		Station:        st,
		SiteNo:         site.SiteNo,
		HasLivePricing: false,
		Hours24:        site.Hours24,
		HGVAccess:      site.HGVAccess,
		Bands:          site.Bands,
	}
}
