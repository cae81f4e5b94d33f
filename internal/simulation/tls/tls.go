// Package tls models the read-only Traffic-Light-System suburb data
// provider, grounded on the source engine's
// src/tls_module/tls_data_provider.py. Production connectivity is out of
// scope; MockProvider is the only implementation shipped, generating a
// deterministic synthetic suburb/property universe.
package tls

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/equihomepartners/core-engine/internal/simulation/config"
)

// Property is one property within a suburb.
type Property struct {
	PropertyID           string  `json:"property_id"`
	BaseValue            float64 `json:"base_value"`
	PropertyType         string  `json:"property_type"`
	Bedrooms             int     `json:"bedrooms"`
	Bathrooms            int     `json:"bathrooms"`
	LandSizeSqm          float64 `json:"land_size"`
	BuildingSizeSqm      float64 `json:"building_size"`
	YearBuilt            int     `json:"year_built"`
	Condition            string  `json:"condition"`
	Quality              string  `json:"quality"`
	AppreciationModifier float64 `json:"appreciation_modifier"`
	RiskModifier         float64 `json:"risk_modifier"`
}

// SuburbData describes one suburb: its zone classification, risk/return
// parameters, and the properties within it.
type SuburbData struct {
	SuburbID            string         `json:"suburb_id"`
	Name                string         `json:"name"`
	Zone                config.Zone    `json:"zone"`
	Latitude             float64        `json:"latitude"`
	Longitude            float64        `json:"longitude"`
	LiquidityScore       float64        `json:"liquidity_score"`
	VolAppreciation      float64        `json:"vol_appreciation"`
	DefaultProbability   float64        `json:"default_probability"`
	Beta                 float64        `json:"beta"`
	ZoneBeta             float64        `json:"zone_beta"`
	IdiosyncraticShare    float64        `json:"idiosyncratic_share"`
	Properties           []Property     `json:"properties"`
}

// Provider is the read-only TLS data source the loan generator, price-path
// engine and risk module consult. It is safe for concurrent reads across
// runs once constructed.
type Provider interface {
	// ZoneDistribution returns the TLS-observed natural weight of each zone,
	// independent of any fund's target allocation.
	ZoneDistribution() map[config.Zone]float64
	// SuburbsByZone lists every suburb TLS classifies under zone.
	SuburbsByZone(zone config.Zone) []SuburbData
	// SuburbData returns the full record for one suburb, or (zero, false)
	// if suburbID is not recognized.
	SuburbData(suburbID string) (SuburbData, bool)
}

const (
	suburbsPerZone    = 24
	propertiesPerSuburb = 40
)

// MockProvider synthesizes a deterministic suburb/property universe from a
// seed, matching the role of the source's _get_mock_data but with a
// richer SuburbData/Property shape.
type MockProvider struct {
	seed     int64
	suburbs  map[string]SuburbData
	byZone   map[config.Zone][]SuburbData
}

// NewMockProvider builds a MockProvider. The same seed always yields the
// same suburb/property universe.
func NewMockProvider(seed int64) *MockProvider {
	p := &MockProvider{
		seed:    seed,
		suburbs: make(map[string]SuburbData),
		byZone:  make(map[config.Zone][]SuburbData),
	}
	p.generate()
	return p
}

func (p *MockProvider) generate() {
	rng := rand.New(rand.NewSource(p.seed))

	zoneParams := map[config.Zone]struct {
		vol, defaultProb, recovery, beta float64
		liquidity                        float64
	}{
		config.ZoneGreen:  {vol: 0.08, defaultProb: 0.01, recovery: 0.9, beta: 0.8, liquidity: 0.85},
		config.ZoneOrange: {vol: 0.12, defaultProb: 0.03, recovery: 0.8, beta: 1.0, liquidity: 0.65},
		config.ZoneRed:    {vol: 0.18, defaultProb: 0.05, recovery: 0.7, beta: 1.3, liquidity: 0.45},
	}

	propertyTypes := []string{"house", "apartment", "townhouse", "unit"}
	conditions := []string{"excellent", "good", "fair", "poor"}
	qualities := []string{"premium", "standard", "basic"}

	for _, zone := range config.Zones {
		zp := zoneParams[zone]
		for i := 0; i < suburbsPerZone; i++ {
			suburbID := fmt.Sprintf("%s-suburb-%03d", zone, i)

			suburb := SuburbData{
				SuburbID:           suburbID,
				Name:               fmt.Sprintf("%s Suburb %d", titleCase(string(zone)), i),
				Zone:               zone,
				Latitude:           -33.8 + rng.Float64()*0.6,
				Longitude:          150.9 + rng.Float64()*0.6,
				LiquidityScore:     clamp01(zp.liquidity + (rng.Float64()-0.5)*0.1),
				VolAppreciation:    zp.vol * (0.85 + rng.Float64()*0.3),
				DefaultProbability: zp.defaultProb * (0.8 + rng.Float64()*0.4),
				Beta:               zp.beta * (0.9 + rng.Float64()*0.2),
				ZoneBeta:           zp.beta,
				IdiosyncraticShare: 0.2 + rng.Float64()*0.3,
			}

			properties := make([]Property, propertiesPerSuburb)
			for j := 0; j < propertiesPerSuburb; j++ {
				baseValue := 400_000 + rng.Float64()*900_000
				properties[j] = Property{
					PropertyID:           fmt.Sprintf("%s-prop-%03d", suburbID, j),
					BaseValue:            baseValue,
					PropertyType:         propertyTypes[rng.Intn(len(propertyTypes))],
					Bedrooms:             2 + rng.Intn(4),
					Bathrooms:            1 + rng.Intn(3),
					LandSizeSqm:          200 + rng.Float64()*600,
					BuildingSizeSqm:      80 + rng.Float64()*250,
					YearBuilt:            1960 + rng.Intn(64),
					Condition:            conditions[rng.Intn(len(conditions))],
					Quality:              qualities[rng.Intn(len(qualities))],
					AppreciationModifier: 0.9 + rng.Float64()*0.2,
					RiskModifier:         0.9 + rng.Float64()*0.2,
				}
			}
			suburb.Properties = properties

			p.suburbs[suburbID] = suburb
			p.byZone[zone] = append(p.byZone[zone], suburb)
		}
	}
}

// ZoneDistribution returns a TLS-observed zone weight distribution; the
// mock splits proportional to generated suburb count, which is uniform
// across zones, so it returns an equal-weighted distribution.
func (p *MockProvider) ZoneDistribution() map[config.Zone]float64 {
	dist := make(map[config.Zone]float64, len(config.Zones))
	total := 0
	for _, z := range config.Zones {
		total += len(p.byZone[z])
	}
	if total == 0 {
		return dist
	}
	for _, z := range config.Zones {
		dist[z] = float64(len(p.byZone[z])) / float64(total)
	}
	return dist
}

// SuburbsByZone returns suburbs in deterministic suburb-id order.
func (p *MockProvider) SuburbsByZone(zone config.Zone) []SuburbData {
	out := append([]SuburbData(nil), p.byZone[zone]...)
	sort.Slice(out, func(i, j int) bool { return out[i].SuburbID < out[j].SuburbID })
	return out
}

// SuburbData returns the record for suburbID.
func (p *MockProvider) SuburbData(suburbID string) (SuburbData, bool) {
	s, ok := p.suburbs[suburbID]
	return s, ok
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
