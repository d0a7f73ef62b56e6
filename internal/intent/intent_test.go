package intent

import (
	"testing"

	"github.com/augustodasneves/supportagent/internal/models"
)

func TestNormalizeLabel(t *testing.T) {
	cases := map[string]string{
		"UPDATE_REGISTRATION":                       models.IntentUpdateRegistration,
		"update_registration":                       models.IntentUpdateRegistration,
		"The intent is UPDATE_REGISTRATION.":        models.IntentUpdateRegistration,
		"OTHER":                                     models.IntentOther,
		"I cannot determine the intent":             models.IntentOther,
		"":                                          models.IntentOther,
	}
	for raw, want := range cases {
		if got := normalizeLabel(raw); got != want {
			t.Errorf("normalizeLabel(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestFallbackLabel(t *testing.T) {
	updates := []string{
		"quero atualizar meu cadastro",
		"Preciso ALTERAR meu telefone",
		"vamos começar",
		"mudar endereço",
		"start",
	}
	for _, text := range updates {
		if got := FallbackLabel(text); got != models.IntentUpdateRegistration {
			t.Errorf("FallbackLabel(%q) = %q, want update intent", text, got)
		}
	}

	others := []string{"oi", "bom dia", "qual o horário de funcionamento?"}
	for _, text := range others {
		if got := FallbackLabel(text); got != models.IntentOther {
			t.Errorf("FallbackLabel(%q) = %q, want OTHER", text, got)
		}
	}
}
