// Package pricing holds the per-model USD/token table used to cost a
// single LM call. A Table is immutable after construction.
package pricing

import "math"

// Rate is the per-token USD price for a single model.
type Rate struct {
	InputPerToken  float64
	OutputPerToken float64
}

// Table is an immutable per-model pricing table.
type Table struct {
	rates map[string]Rate
}

// DefaultRates mirrors the publicly listed per-token prices for the
// provider models this module wires up (Anthropic Claude, OpenAI GPT).
// Values are USD per single token, derived from the providers' published
// per-million-token prices.
var DefaultRates = map[string]Rate{
	"claude-3-5-sonnet-20241022": {InputPerToken: 3.0 / 1_000_000, OutputPerToken: 15.0 / 1_000_000},
	"claude-3-5-sonnet-latest":   {InputPerToken: 3.0 / 1_000_000, OutputPerToken: 15.0 / 1_000_000},
	"claude-sonnet-4-20250514":   {InputPerToken: 3.0 / 1_000_000, OutputPerToken: 15.0 / 1_000_000},
	"claude-3-5-haiku-20241022":  {InputPerToken: 1.0 / 1_000_000, OutputPerToken: 5.0 / 1_000_000},
	"claude-3-opus-20240229":     {InputPerToken: 15.0 / 1_000_000, OutputPerToken: 75.0 / 1_000_000},
	"claude-3-haiku-20240307":    {InputPerToken: 0.25 / 1_000_000, OutputPerToken: 1.25 / 1_000_000},
	"gpt-4o":                     {InputPerToken: 2.50 / 1_000_000, OutputPerToken: 10.0 / 1_000_000},
	"gpt-4o-mini":                {InputPerToken: 0.15 / 1_000_000, OutputPerToken: 0.60 / 1_000_000},
	"gpt-4-turbo":                {InputPerToken: 10.0 / 1_000_000, OutputPerToken: 30.0 / 1_000_000},
	"gpt-4":                      {InputPerToken: 30.0 / 1_000_000, OutputPerToken: 60.0 / 1_000_000},
	"gpt-3.5-turbo":              {InputPerToken: 0.50 / 1_000_000, OutputPerToken: 1.50 / 1_000_000},
	"o1":                         {InputPerToken: 15.0 / 1_000_000, OutputPerToken: 60.0 / 1_000_000},
	"o1-mini":                    {InputPerToken: 3.0 / 1_000_000, OutputPerToken: 12.0 / 1_000_000},
}

// NewTable builds a Table from the given rates map (copied, so the caller's
// map may be discarded or mutated afterwards). Pass nil to use DefaultRates.
func NewTable(rates map[string]Rate) *Table {
	if rates == nil {
		rates = DefaultRates
	}
	t := &Table{rates: make(map[string]Rate, len(rates))}
	for model, rate := range rates {
		t.rates[model] = rate
	}
	return t
}

// Cost computes the USD cost of one LM call:
//
//	cost = input_tokens * price_in[model] + output_tokens * price_out[model]
//
// known is false when the model has no entry in the table; callers must
// treat that as a non-fatal warning condition (cost is 0, not an error).
func (t *Table) Cost(model string, inputTokens, outputTokens int) (usd float64, known bool) {
	rate, ok := t.rates[model]
	if !ok {
		return 0, false
	}
	total := float64(inputTokens)*rate.InputPerToken + float64(outputTokens)*rate.OutputPerToken
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return 0, true
	}
	return total, true
}

// Has reports whether the table has a rate for model.
func (t *Table) Has(model string) bool {
	_, ok := t.rates[model]
	return ok
}

// Len returns the number of priced models, used by the health endpoint.
func (t *Table) Len() int {
	return len(t.rates)
}
