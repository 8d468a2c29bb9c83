package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLocation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "en with capitalized place", text: "Clima en Albacete", want: "Albacete"},
		{name: "de with capitalized place", text: "el tiempo de Madrid", want: "Madrid"},
		{name: "accented place", text: "clima en Ávila", want: "Ávila"},
		{name: "lowercase place ignored", text: "clima en albacete", want: ""},
		{name: "no preposition", text: "Albacete", want: ""},
		{name: "empty", text: "", want: ""},
		{name: "first match wins", text: "clima en Madrid o en Sevilla", want: "Madrid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractLocation(tt.text))
		})
	}
}

func TestApplyLocation(t *testing.T) {
	tests := []struct {
		name     string
		userText string
		reply    string
		want     string
	}{
		{
			name:     "rewrites generic phrase",
			userText: "Clima en Albacete",
			reply:    "La temperatura actual es de 20°C con un viento de 5 km/h.",
			want:     "En Albacete la temperatura actual es de 20°C con un viento de 5 km/h.",
		},
		{
			name:     "no location leaves reply alone",
			userText: "dime el clima",
			reply:    "La temperatura actual es de 20°C con un viento de 5 km/h.",
			want:     "La temperatura actual es de 20°C con un viento de 5 km/h.",
		},
		{
			name:     "location without weather phrase leaves reply alone",
			userText: "háblame de Madrid",
			reply:    "Madrid es la capital de España.",
			want:     "Madrid es la capital de España.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, applyLocation(tt.userText, tt.reply))
		})
	}
}
