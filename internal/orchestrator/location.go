package orchestrator

import (
	"regexp"
	"strings"
)

// genericTemperaturePhrase is the opening of the weather tool's answer.
const genericTemperaturePhrase = "La temperatura actual"

// locationPattern captures a capitalized place name after "en" or "de",
// e.g. "Clima en Albacete" -> "Albacete". A heuristic, kept deliberately
// narrow: single capitalized word, Spanish letters only.
var locationPattern = regexp.MustCompile(`(?:en|de)\s+([A-ZÁÉÍÓÚÑ][a-záéíóúñ]+)`)

// extractLocation pulls a possible place name from the user text.
func extractLocation(text string) string {
	match := locationPattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// applyLocation rewrites the generic temperature phrase to name the place
// the user asked about, when one was extractable.
func applyLocation(userText, reply string) string {
	location := extractLocation(userText)
	if location == "" || !strings.Contains(reply, genericTemperaturePhrase) {
		return reply
	}

	return strings.ReplaceAll(reply, genericTemperaturePhrase,
		"En "+location+" la temperatura actual")
}
