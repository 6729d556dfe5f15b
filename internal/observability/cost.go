package observability

import (
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/travel-guide-api/internal/llm"
)

// Pricing constants
const (
	tokensPerKilo       = 1000.0
	costFormatPrecision = 6

	// GPT-4o pricing
	gpt4oInputPrice  = 0.0025
	gpt4oOutputPrice = 0.01

	// GPT-4 Turbo pricing
	gpt4TurboInputPrice  = 0.01
	gpt4TurboOutputPrice = 0.03

	// GPT-4 pricing
	gpt4InputPrice  = 0.03
	gpt4OutputPrice = 0.06

	// Gemini 2.5 Flash pricing
	geminiFlashInputPrice  = 0.0003
	geminiFlashOutputPrice = 0.0025

	// Per image, 1024x1024
	gptImage1Price = 0.042
	dalle3Price    = 0.04
	imagen3Price   = 0.03
)

// ModelPricing contains pricing information per 1K tokens
type ModelPricing struct {
	InputPricePer1K  float64 // Price per 1K input tokens in USD
	OutputPricePer1K float64 // Price per 1K output tokens in USD
}

// PricingTable contains pricing for the text models in the default chains
var PricingTable = map[string]ModelPricing{
	"gpt-4o": {
		InputPricePer1K:  gpt4oInputPrice,
		OutputPricePer1K: gpt4oOutputPrice,
	},
	"gpt-4-turbo": {
		InputPricePer1K:  gpt4TurboInputPrice,
		OutputPricePer1K: gpt4TurboOutputPrice,
	},
	"gpt-4": {
		InputPricePer1K:  gpt4InputPrice,
		OutputPricePer1K: gpt4OutputPrice,
	},
	"gemini-2.5-flash": {
		InputPricePer1K:  geminiFlashInputPrice,
		OutputPricePer1K: geminiFlashOutputPrice,
	},
}

// ImagePricingTable is the USD price of one generated image
var ImagePricingTable = map[string]float64{
	"gpt-image-1":             gptImage1Price,
	"dall-e-3":                dalle3Price,
	"imagen-3.0-generate-002": imagen3Price,
}

// CalculateTextCost calculates the cost in USD of one text generation.
// Unknown models are priced like gpt-4o; dated snapshots use their base model.
func CalculateTextCost(model string, usage llm.Usage) float64 {
	pricing, exists := lookupPricing(model)
	if !exists {
		pricing = PricingTable["gpt-4o"]
	}

	inputCost := (float64(usage.InputTokens) / tokensPerKilo) * pricing.InputPricePer1K
	outputCost := (float64(usage.OutputTokens) / tokensPerKilo) * pricing.OutputPricePer1K
	return inputCost + outputCost
}

// CalculateImageCost returns the price of one image, or 0 when unknown
func CalculateImageCost(model string) float64 {
	return ImagePricingTable[model]
}

func lookupPricing(model string) (ModelPricing, bool) {
	if p, ok := PricingTable[model]; ok {
		return p, true
	}
	// gpt-4o-2024-08-06 → gpt-4o
	best := ""
	for name := range PricingTable {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return ModelPricing{}, false
	}
	return PricingTable[best], true
}

// FormatCost formats a cost value as a USD string
func FormatCost(cost float64) string {
	return "$" + formatFloat(cost, costFormatPrecision)
}

// formatFloat formats a float with specified precision using strconv
func formatFloat(f float64, precision int) string {
	return strconv.FormatFloat(f, 'f', precision, 64)
}
