// Package cost estimates delivery spend before a send and attributes unit
// cost to successful attempts afterwards. Everything here is pure table
// lookup; no network access.
package cost

import (
	"strings"

	"github.com/asoclub/notify-engine/internal/domain"
)

// Rate is one row of the unit-cost table.
type Rate struct {
	Channel  domain.Channel
	Provider string
	// Unit is the per-message list price in USD.
	Unit float64
}

type rateKey struct {
	channel  domain.Channel
	provider string
}

// Estimator maps (channel, provider) to a unit cost, with an optional
// per-country multiplier for jurisdiction-sensitive channels. Immutable
// after construction and safe for concurrent use.
type Estimator struct {
	unitCosts map[rateKey]float64
	// countryMultipliers adjusts phone-channel pricing by destination
	// country (ISO 3166-1 alpha-2).
	countryMultipliers map[string]float64
}

func NewEstimator(rates []Rate, countryMultipliers map[string]float64) *Estimator {
	costs := make(map[rateKey]float64, len(rates))
	for _, r := range rates {
		costs[rateKey{r.Channel, strings.ToLower(strings.TrimSpace(r.Provider))}] = r.Unit
	}
	multipliers := make(map[string]float64, len(countryMultipliers))
	for k, v := range countryMultipliers {
		multipliers[strings.ToUpper(k)] = v
	}
	return &Estimator{unitCosts: costs, countryMultipliers: multipliers}
}

// DefaultEstimator carries the platform's published vendor list prices.
func DefaultEstimator() *Estimator {
	return NewEstimator(
		[]Rate{
			{domain.ChannelWhatsApp, "callmebot", 0},
			{domain.ChannelWhatsApp, "meta", 0.0068},
			{domain.ChannelWhatsApp, "twilio", 0.0147},
			{domain.ChannelSMS, "twilio", 0.0790},
			{domain.ChannelEmail, "sendgrid", 0.0006},
			{domain.ChannelPush, "webhook", 0},
			{domain.ChannelInApp, "webhook", 0},
		},
		map[string]float64{
			"AR": 1.0,
			"UY": 1.15,
			"CL": 1.28,
			"BR": 0.92,
			"US": 0.75,
		},
	)
}

// UnitCost returns the per-message cost for one (channel, provider) pair,
// zero when the pair is unknown.
func (e *Estimator) UnitCost(channel domain.Channel, provider string) float64 {
	if e == nil {
		return 0
	}
	return e.unitCosts[rateKey{channel, strings.ToLower(strings.TrimSpace(provider))}]
}

// Estimate computes the projected cost of sending to recipientCount
// recipients. The country multiplier only applies to phone-based channels;
// email and push pricing does not vary by jurisdiction. An unknown or empty
// country falls back to multiplier 1.
func (e *Estimator) Estimate(channel domain.Channel, provider string, recipientCount int, countryCode string) float64 {
	if e == nil || recipientCount <= 0 {
		return 0
	}

	unit := e.UnitCost(channel, provider)
	if unit == 0 {
		return 0
	}

	multiplier := 1.0
	if channel.IsPhoneBased() {
		if m, ok := e.countryMultipliers[strings.ToUpper(strings.TrimSpace(countryCode))]; ok {
			multiplier = m
		}
	}

	return unit * multiplier * float64(recipientCount)
}
