package timegrid

import (
	"fmt"
	"strings"
	"time"
)

// JST is Japan Standard Time as a fixed zone so the binary does not depend on tzdata.
func JST() *time.Location {
	return time.FixedZone("JST", 9*60*60)
}

// LoadLocation resolves the configured timezone name. Asia/Tokyo and JST map to the
// fixed JST zone; other names go through the system zone database.
func LoadLocation(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "JST", "Asia/Tokyo":
		return JST(), nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timegrid: unknown location %q: %w", name, err)
	}
	return loc, nil
}
