// Package directory converts the raw authoritative partner-site payload
// into canonical site records.
package directory

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fuelscout/fuelscout/internal/station"
)

// IngestorConfig holds configuration for the directory ingestor.
type IngestorConfig struct {
	Logger zerolog.Logger
}

// Ingestor converts the raw site directory payload into canonical sites.
// Fails soft: a malformed payload yields an empty list, never an error
// that halts the caller.
type Ingestor struct {
	logger zerolog.Logger
}

// NewIngestor creates a new directory ingestor.
func NewIngestor(cfg IngestorConfig) *Ingestor {
	return &Ingestor{logger: cfg.Logger}
}

// Ingest converts the raw authoritative payload into a list of sites.
// The payload is either a bare array of site objects or an object
// wrapping one under "sites".
func (i *Ingestor) Ingest(raw json.RawMessage) []*station.Site {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		i.logger.Warn().Err(err).Msg("directory payload is not valid JSON")
		return []*station.Site{}
	}

	records, ok := payload.([]any)
	if !ok {
		if obj, isObj := payload.(map[string]any); isObj {
			records, _ = obj["sites"].([]any)
		}
	}
	if records == nil {
		i.logger.Warn().Msg("no site list found in directory payload")
		return []*station.Site{}
	}

	sites := make([]*station.Site, 0, len(records))
	skipped := 0
	for idx, rec := range records {
		obj, isObj := rec.(map[string]any)
		if !isObj {
			skipped++
			continue
		}
		site := toSite(obj)
		if site.SiteNo == 0 {
			i.logger.Debug().Int("index", idx).Msg("skipping directory record without site number")
			skipped++
			continue
		}
		sites = append(sites, site)
	}

	if skipped > 0 {
		i.logger.Debug().Int("skipped", skipped).Msg("dropped malformed directory records")
	}
	return sites
}

// toSite extracts one canonical site from a raw directory record.
// Coordinates accept both short and long field names; text fields are
// upper-cased and trimmed; capability flags default to false.
func toSite(rec map[string]any) *station.Site {
	lat, _ := firstFloat(rec, "lat", "latitude")
	lon, _ := firstFloat(rec, "lng", "longitude")

	return &station.Site{
		SiteNo:    intField(rec, "site_no", "siteNo", "site_number"),
		AltSiteNo: intField(rec, "alt_site_no", "altSiteNo"),
		Lat:       lat,
		Lon:       lon,
		Name:      textField(rec, "site_name", "siteName", "name"),
		Street:    textField(rec, "street1", "street", "address"),
		Town:      textField(rec, "town", "city"),
		Postcode:  textField(rec, "post_code", "postcode", "postCode"),
		Brand:     textField(rec, "brand"),
		Hours24:   boolField(rec, "h24", "hours24", "hours_24"),
		HGVAccess: boolField(rec, "hgv", "hgv_access", "hgvAccess"),
		Petrol:    boolField(rec, "petrol"),
		Diesel:    boolField(rec, "diesel"),
		Bands:     textField(rec, "bands"),
	}
}

// textField returns the first present key, upper-cased and trimmed.
func textField(rec map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := rec[key].(string); ok {
			if s := strings.ToUpper(strings.TrimSpace(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func intField(rec map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := rec[key].(type) {
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}
	return 0
}

func boolField(rec map[string]any, keys ...string) bool {
	for _, key := range keys {
		switch v := rec[key].(type) {
		case bool:
			return v
		case string:
			switch strings.ToUpper(strings.TrimSpace(v)) {
			case "Y", "YES", "TRUE", "1":
				return true
			case "N", "NO", "FALSE", "0":
				return false
			}
		case float64:
			return v != 0
		}
	}
	return false
}

func firstFloat(rec map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := rec[key].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
