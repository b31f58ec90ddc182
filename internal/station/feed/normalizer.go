// Package feed converts per-retailer fuel-price payloads, published in
// mutually incompatible JSON schemas, into canonical station records.
package feed

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuelscout/fuelscout/internal/station"
)

// NormalizerConfig holds configuration for the feed normalizer.
type NormalizerConfig struct {
	// Logger for record-level diagnostics.
	Logger zerolog.Logger

	// Now supplies the timestamp used when a record carries none.
	// Defaults to time.Now; tests inject a fixed clock.
	Now func() time.Time
}

// Normalizer converts one retailer's raw payload into canonical stations.
// It never fails: a malformed payload yields zero records, a malformed
// record is logged and skipped. One broken feed must never abort the
// whole ingestion run.
type Normalizer struct {
	logger zerolog.Logger
	now    func() time.Time
}

// NewNormalizer creates a new feed normalizer.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Normalizer{
		logger: cfg.Logger,
		now:    now,
	}
}

// Normalize converts a raw retailer payload into canonical station records.
// Records with no price for any fuel are discarded.
func (n *Normalizer) Normalize(retailer string, raw json.RawMessage) []*station.Station {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		n.logger.Warn().
			Str("retailer", retailer).
			Err(err).
			Msg("feed payload is not valid JSON")
		return nil
	}

	records, strategy := discoverRecords(payload)
	if records == nil {
		n.logger.Warn().
			Str("retailer", retailer).
			Msg("no record list found in feed payload")
		return nil
	}

	n.logger.Debug().
		Str("retailer", retailer).
		Str("strategy", strategy).
		Int("records", len(records)).
		Msg("discovered feed record list")

	stations := make([]*station.Station, 0, len(records))
	skipped := 0
	priceless := 0

	for i, rec := range records {
		obj, ok := rec.(map[string]any)
		if !ok {
			n.logger.Debug().
				Str("retailer", retailer).
				Int("index", i).
				Msg("skipping non-object feed record")
			skipped++
			continue
		}

		st := n.toStation(retailer, obj, i)
		if !st.HasAnyPrice() {
			priceless++
			continue
		}
		stations = append(stations, st)
	}

	if skipped > 0 || priceless > 0 {
		n.logger.Debug().
			Str("retailer", retailer).
			Int("skipped", skipped).
			Int("priceless", priceless).
			Msg("dropped feed records during normalization")
	}

	return stations
}

// listStrategy is one named attempt at locating the record list inside an
// arbitrarily-shaped payload. Strategies are tried in a fixed order; the
// first one that yields a non-empty list wins.
type listStrategy struct {
	name    string
	extract func(payload any) []any
}

// probedKeys are the well-known wrapper keys, probed in this exact order.
var probedKeys = []string{
	"stations", "data", "results", "fuel_prices", "items",
	"sites", "locations", "stores", "forecourts",
}

// recordStrategies is the full ordered strategy list: the probed keys,
// then the bare-array payload, then the first (lexicographically) key
// whose value is a non-empty list.
var recordStrategies = buildRecordStrategies()

func buildRecordStrategies() []listStrategy {
	strategies := make([]listStrategy, 0, len(probedKeys)+2)
	for _, key := range probedKeys {
		strategies = append(strategies, keyStrategy(key))
	}
	strategies = append(strategies,
		listStrategy{
			name: "root-array",
			extract: func(payload any) []any {
				list, _ := payload.([]any)
				return list
			},
		},
		listStrategy{
			name:    "first-array-value",
			extract: firstArrayValue,
		},
	)
	return strategies
}

func keyStrategy(key string) listStrategy {
	return listStrategy{
		name: "key:" + key,
		extract: func(payload any) []any {
			obj, ok := payload.(map[string]any)
			if !ok {
				return nil
			}
			list, _ := obj[key].([]any)
			return list
		},
	}
}

// firstArrayValue scans keys in sorted order so the fallback is
// deterministic; JSON object key order does not survive decoding.
func firstArrayValue(payload any) []any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if list, ok := obj[k].([]any); ok && len(list) > 0 {
			return list
		}
	}
	return nil
}

// discoverRecords runs the strategies in order and returns the first
// non-empty record list plus the name of the strategy that found it.
func discoverRecords(payload any) ([]any, string) {
	for _, s := range recordStrategies {
		if list := s.extract(payload); len(list) > 0 {
			return list, s.name
		}
	}
	return nil, ""
}

// toStation extracts one canonical station from a raw feed record.
func (n *Normalizer) toStation(retailer string, rec map[string]any, index int) *station.Station {
	id := stringField(rec, "id", "site_id", "store_id", "location_id", "number")
	if id == "" {
		id = strconv.Itoa(index)
	}

	brand := stringField(rec, "brand", "retailer", "trading_name")
	if brand == "" {
		brand = retailer
	}

	lat, lon := extractCoordinates(rec)
	petrol, diesel, super := extractPrices(rec)

	return &station.Station{
		ID:          retailer + "-" + id,
		Retailer:    retailer,
		Brand:       brand,
		Name:        stringField(rec, "name", "site_name", "station_name", "location_name"),
		Address:     stringField(rec, "address", "street", "address_line1"),
		Postcode:    stringField(rec, "postcode", "post_code", "postal_code"),
		Town:        stringField(rec, "town", "city", "locality"),
		Lat:         lat,
		Lon:         lon,
		PetrolPrice: petrol,
		DieselPrice: diesel,
		SuperPrice:  super,
		LastUpdated: n.extractLastUpdated(rec),
		IsOpen:      extractIsOpen(rec),
	}
}

// coordinate shapes, tried in order. The first shape whose components are
// all present and parsable wins; otherwise both coordinates stay 0.
func extractCoordinates(rec map[string]any) (float64, float64) {
	if loc, ok := rec["location"].(map[string]any); ok {
		if lat, lon, ok := coordPair(loc, []string{"latitude", "lat"}, []string{"longitude", "lng", "lon"}); ok {
			return lat, lon
		}
	}
	if lat, lon, ok := coordPair(rec, []string{"latitude"}, []string{"longitude"}); ok {
		return lat, lon
	}
	if lat, lon, ok := coordPair(rec, []string{"lat"}, []string{"lng", "lon", "long"}); ok {
		return lat, lon
	}
	if g, ok := rec["geo"].(map[string]any); ok {
		if lat, lon, ok := coordPair(g, []string{"lat"}, []string{"lng", "lon"}); ok {
			return lat, lon
		}
	}
	if c, ok := rec["coords"].(map[string]any); ok {
		if lat, lon, ok := coordPair(c, []string{"latitude", "lat"}, []string{"longitude", "lng"}); ok {
			return lat, lon
		}
	}
	return 0, 0
}

func coordPair(obj map[string]any, latKeys, lonKeys []string) (float64, float64, bool) {
	lat, ok := firstFloat(obj, latKeys)
	if !ok {
		return 0, 0, false
	}
	lon, ok := firstFloat(obj, lonKeys)
	if !ok {
		return 0, 0, false
	}
	return lat, lon, true
}

// extractPrices applies the price precedence cascade. The write-once
// versus overwrite rules mirror how the feeds actually disagree with
// each other: several carry both raw fuel codes and human-readable
// aliases, and the aliases are the ones retailers keep correct.
func extractPrices(rec map[string]any) (petrol, diesel, super *float64) {
	// Raw fuel codes in pence. SDV only fills diesel when B7 did not.
	if prices, ok := rec["prices"].(map[string]any); ok {
		if v, ok := toFloat(prices["E10"]); ok {
			petrol = ptr(v / 100)
		}
		if v, ok := toFloat(prices["E5"]); ok {
			super = ptr(v / 100)
		}
		if v, ok := toFloat(prices["B7"]); ok {
			diesel = ptr(v / 100)
		}
		if diesel == nil {
			if v, ok := toFloat(prices["SDV"]); ok {
				diesel = ptr(v / 100)
			}
		}

		// Human-readable aliases in pounds override the codes.
		if v, ok := toFloat(prices["unleaded"]); ok {
			petrol = ptr(v)
		}
		if v, ok := toFloat(prices["diesel"]); ok {
			diesel = ptr(v)
		}
		if v, ok := toFloat(prices["super_unleaded"]); ok {
			super = ptr(v)
		}
	}

	// Tagged service entries in pence, authoritative when present.
	if services, ok := rec["fuel_type_services"].([]any); ok {
		for _, entry := range services {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			v, ok := toFloat(m["price"])
			if !ok {
				continue
			}
			switch tag := stringField(m, "fuel_type", "type", "name"); {
			case strings.EqualFold(tag, "ULDS") || strings.EqualFold(tag, "Unleaded"):
				petrol = ptr(v / 100)
			case strings.EqualFold(tag, "ULSD") || strings.EqualFold(tag, "Diesel"):
				diesel = ptr(v / 100)
			case strings.EqualFold(tag, "SUL") || strings.EqualFold(tag, "Super Unleaded"):
				super = ptr(v / 100)
			}
		}
	}

	// camelCase fuel code map in pence, authoritative when present.
	if prices, ok := rec["fuelPrices"].(map[string]any); ok {
		if v, ok := toFloat(prices["E10"]); ok {
			petrol = ptr(v / 100)
		}
		if v, ok := toFloat(prices["B7"]); ok {
			diesel = ptr(v / 100)
		}
		if v, ok := toFloat(prices["E5"]); ok {
			super = ptr(v / 100)
		}
	}

	// Final fallback cascade for flat-schema feeds; only entered when
	// nothing above produced a petrol or diesel price. Within this step
	// each assignment overwrites the previous one.
	if petrol == nil && diesel == nil {
		if v, ok := toFloat(rec["unleaded"]); ok {
			petrol = ptr(v / 100)
		}
		if v, ok := toFloat(rec["diesel"]); ok {
			diesel = ptr(v / 100)
		}
		if v, ok := toFloat(rec["super_unleaded"]); ok {
			super = ptr(v / 100)
		}
		if v, ok := toFloat(rec["unleaded_price"]); ok {
			petrol = ptr(v)
		}
		if v, ok := toFloat(rec["diesel_price"]); ok {
			diesel = ptr(v)
		}
		if v, ok := toFloat(rec["super_unleaded_price"]); ok {
			super = ptr(v)
		}
		if v, ok := toFloat(rec["petrol"]); ok {
			petrol = ptr(v)
		}
		if v, ok := toFloat(rec["petrol_price"]); ok {
			petrol = ptr(v)
		}
		if fp, ok := rec["fuel_prices"].(map[string]any); ok {
			if v, ok := toFloat(fp["unleaded"]); ok {
				petrol = ptr(v)
			}
			if v, ok := toFloat(fp["diesel"]); ok {
				diesel = ptr(v)
			}
		}
	}

	return petrol, diesel, super
}

// extractLastUpdated parses the record timestamp, defaulting to the
// normalization time when absent or unparsable.
func (n *Normalizer) extractLastUpdated(rec map[string]any) time.Time {
	raw := stringField(rec, "last_updated", "updated_at", "lastUpdated")
	if raw == "" {
		return n.now()
	}
	for _, layout := range []string{time.RFC3339, "02/01/2006 15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return n.now()
}

// extractIsOpen defaults to open unless the source explicitly marks the
// station closed.
func extractIsOpen(rec map[string]any) bool {
	for _, key := range []string{"is_open", "isOpen", "open"} {
		if v, ok := rec[key].(bool); ok {
			return v
		}
	}
	if v, ok := rec["closed"].(bool); ok {
		return !v
	}
	if status, ok := rec["status"].(string); ok && strings.EqualFold(strings.TrimSpace(status), "closed") {
		return false
	}
	return true
}

// stringField returns the first present key rendered as a string; numeric
// identifiers are formatted without an exponent.
func stringField(rec map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := rec[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func firstFloat(obj map[string]any, keys []string) (float64, bool) {
	for _, key := range keys {
		if v, present := obj[key]; present {
			if f, ok := toFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// toFloat accepts JSON numbers and numeric strings; anything else is
// treated as absent.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func ptr(v float64) *float64 {
	return &v
}
