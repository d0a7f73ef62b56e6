// Package validate provides the per-field input validators for the
// data-collection flow.
//
// Validators are pure functions of the input string: they either reject with
// a user-facing error message or accept with a normalized value. Retry
// bookkeeping lives in the flow handlers, not here.
package validate

import (
	"regexp"
	"strings"
)

// Result is the outcome of validating one input.
type Result struct {
	Valid      bool
	Normalized string
	Message    string
}

func success(normalized string) Result {
	return Result{Valid: true, Normalized: normalized}
}

func failure(message string) Result {
	return Result{Valid: false, Message: message}
}

// Validator checks and normalizes one field's input.
type Validator interface {
	Validate(input string) Result
}

// Phone number limits after normalization (digits only, DDD included).
const (
	minPhoneDigits = 10
	maxPhoneDigits = 13
)

// Accepts formats like (11) 99999-9999, 11-99999-9999, 11999999999, +5511999999999.
var phonePattern = regexp.MustCompile(`^(\+55\s?)?(\(?\d{2}\)?[\s-]?)?9?\d{4}[\s-]?\d{4}$`)

var nonPhoneChars = regexp.MustCompile(`[^\d+]`)

// PhoneValidator validates Brazilian phone numbers and normalizes them to
// digits plus an optional leading plus.
type PhoneValidator struct{}

func (PhoneValidator) Validate(input string) Result {
	input = strings.TrimSpace(input)
	if input == "" {
		return failure("❌ O número de telefone não pode estar vazio.")
	}

	if !phonePattern.MatchString(input) {
		return failure("❌ Formato de telefone inválido. Por favor, use um formato válido como:\n" +
			"• (11) 99999-9999\n" +
			"• 11-99999-9999\n" +
			"• 11999999999\n" +
			"• +5511999999999")
	}

	normalized := nonPhoneChars.ReplaceAllString(input, "")
	digits := strings.ReplaceAll(normalized, "+", "")
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return failure("❌ O número de telefone deve conter entre 10 e 11 dígitos (com DDD).")
	}

	return success(normalized)
}

// Maximum email length per RFC 5321.
const maxEmailLength = 254

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// EmailValidator validates email addresses against a simplified RFC 5322
// pattern and normalizes them to lower case.
type EmailValidator struct{}

func (EmailValidator) Validate(input string) Result {
	input = strings.TrimSpace(input)
	if input == "" {
		return failure("❌ O e-mail não pode estar vazio.")
	}

	if !emailPattern.MatchString(input) {
		return failure("❌ Formato de e-mail inválido. Por favor, use um formato válido como:\n" +
			"• usuario@exemplo.com\n" +
			"• nome.sobrenome@empresa.com.br")
	}

	if len(input) > maxEmailLength {
		return failure("❌ O e-mail é muito longo. Use no máximo 254 caracteres.")
	}

	return success(strings.ToLower(input))
}

// Address length limits.
const (
	minAddressLength = 10
	maxAddressLength = 500
)

var (
	addressNoText      = regexp.MustCompile(`^[\s\d\-,\.]+$`)
	addressWhitespaces = regexp.MustCompile(`\s+`)
)

// AddressValidator validates free-form postal addresses and collapses
// internal whitespace runs.
type AddressValidator struct{}

func (AddressValidator) Validate(input string) Result {
	input = strings.TrimSpace(input)
	if input == "" {
		return failure("❌ O endereço não pode estar vazio.")
	}

	if len(input) < minAddressLength {
		return failure("❌ O endereço é muito curto. Por favor, forneça um endereço completo com pelo menos 10 caracteres.\n" +
			"Exemplo: Rua das Flores, 123, Centro, São Paulo - SP")
	}

	if len(input) > maxAddressLength {
		return failure("❌ O endereço é muito longo. Use no máximo 500 caracteres.")
	}

	if addressNoText.MatchString(input) {
		return failure("❌ O endereço deve conter texto descritivo (nome da rua, bairro, etc).\n" +
			"Exemplo: Rua das Flores, 123, Centro, São Paulo - SP")
	}

	return success(addressWhitespaces.ReplaceAllString(input, " "))
}
