package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"accents and comma", "MARÍA, Pérez", "maria perez"},
		{"enye", "Peña Núñez", "pena nunez"},
		{"whitespace runs", "  Juan \t\t Carlos\n", "juan carlos"},
		{"semicolon and period", "Sr. Gómez;Ana", "sr gomez ana"},
		{"hyphen kept", "Pérez-Gómez", "perez-gomez"},
		{"symbols dropped", "Ana & Luis (casa)", "ana luis casa"},
		{"digits kept", "Apto 4B", "apto 4b"},
		{"empty", "", ""},
		{"only punctuation", ",.;", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FoldText(tt.raw))
		})
	}
}

func TestFoldText_Idempotent(t *testing.T) {
	for _, raw := range []string{"MARÍA, Pérez", "José  de la Cruz", "Ñoño-Ávila 12"} {
		once := FoldText(raw)
		assert.Equal(t, once, FoldText(once), raw)
	}
}

func TestNormalize_Tokens(t *testing.T) {
	n := NewNormalizer(DefaultStopWords)

	got := n.Normalize("MARÍA, Pérez")
	assert.Equal(t, []string{"maria", "perez"}, got.Tokens)
	assert.Equal(t, "maria perez", got.Text)
}

func TestNormalize_DropsStopWords(t *testing.T) {
	n := NewNormalizer(DefaultStopWords)

	got := n.Normalize("José de la Cruz y Los Santos")
	assert.Equal(t, []string{"jose", "cruz", "santos"}, got.Tokens)
	assert.True(t, n.IsStopWord("del"))
	assert.False(t, n.IsStopWord("cruz"))
}

func TestNormalize_StopWordsAreInjected(t *testing.T) {
	n := NewNormalizer([]string{"Señor"})

	got := n.Normalize("senor de Pérez")
	assert.Equal(t, []string{"de", "perez"}, got.Tokens)
}

func TestNormalize_DigitsAndCode(t *testing.T) {
	n := NewNormalizer(nil)

	got := n.Normalize(" can - 000123 ")
	assert.Equal(t, "CAN-000123", got.Code)
	assert.Equal(t, "000123", got.Digits)

	got = n.Normalize("(809) 555-1234")
	assert.Equal(t, "8095551234", got.Digits)
}
