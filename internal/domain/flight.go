package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// FlightRecord is one live flight position returned by the upstream
// feed. Field names follow the FR24 live-positions payload.
type FlightRecord struct {
	FR24ID       string `json:"fr24_id,omitempty"`
	Flight       string `json:"flight,omitempty"`
	Callsign     string `json:"callsign,omitempty"`
	Registration string `json:"reg,omitempty"`
	Typecode     string `json:"type,omitempty"`
	OrigIATA     string `json:"orig_iata,omitempty"`
	OrigICAO     string `json:"orig_icao,omitempty"`
	DestIATA     string `json:"dest_iata,omitempty"`
	DestICAO     string `json:"dest_icao,omitempty"`
	Altitude     int    `json:"alt,omitempty"`
	GroundSpeed  int    `json:"gspeed,omitempty"`
	Track        int    `json:"track,omitempty"`
	ETA          string `json:"eta,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// FlightKey returns a stable identifier for dedupe purposes.
// Prefers the upstream flight ID, then a composite of identifying
// fields, then a hash of the whole record as a last resort.
func (f FlightRecord) FlightKey() string {
	if f.FR24ID != "" {
		return f.FR24ID
	}
	parts := make([]string, 0, 5)
	for _, p := range []string{f.Callsign, f.Flight, f.OrigIATA, f.DestIATA, f.Timestamp} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "|")
	}
	payload, err := json.Marshal(f)
	if err != nil {
		payload = []byte("unidentified")
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:16]
}

// Summary returns a short human-readable label for notification text.
func (f FlightRecord) Summary() string {
	if f.Flight != "" {
		return f.Flight
	}
	if f.Callsign != "" {
		return f.Callsign
	}
	return "Flight update"
}

// Route returns "ORG -> DST" when both ends are known, otherwise
// whichever end is available, otherwise empty.
func (f FlightRecord) Route() string {
	orig := f.OrigIATA
	if orig == "" {
		orig = f.OrigICAO
	}
	dest := f.DestIATA
	if dest == "" {
		dest = f.DestICAO
	}
	switch {
	case orig != "" && dest != "":
		return orig + " -> " + dest
	case dest != "":
		return dest
	default:
		return orig
	}
}
