package flow

import (
	"fmt"

	"github.com/augustodasneves/supportagent/internal/models"
)

// User-facing copy, pt-BR. Registration and update flows share most
// phrasing but differ in how saved fields are announced.

const (
	msgStartRegistration = "Olá! 👋\n\nNotei que você ainda não tem cadastro conosco. Vamos realizar seu cadastro agora? É rápido!\n\nPara começar, por favor, digite seu nome completo."

	msgConfirmUpdateYes = "Vamos lá! Por favor, digite seu nome completo."
	msgStartUpdate      = "Vamos atualizar seus dados! Por favor, digite seu nome completo."
	msgConfirmUpdateNo  = "Ok, cancelando a atualização."

	msgNameTooShort = "❌ Por favor, digite seu nome completo (mínimo 2 letras)."

	msgRestartCollection = "Vamos começar novamente. Por favor, digite seu nome completo."
)

func msgGreetKnownUpdate(name string) string {
	return fmt.Sprintf("Olá, %s! 👋\n\nQue bom falar com você novamente. Gostaria de atualizar seus dados cadastrais?", name)
}

func msgGreetKnownOther(name string) string {
	return fmt.Sprintf("Olá, %s! 👋\n\nSou seu assistente virtual. Como posso ajudar hoje? Se precisar atualizar seu endereço, telefone ou e-mail, é só me avisar!", name)
}

func msgNameSaved(flowType models.FlowType) string {
	action := "salvo"
	if flowType == models.FlowTypeUpdate {
		action = "atualizado"
	}
	next := "número de telefone (com DDD)"
	if flowType == models.FlowTypeUpdate {
		next = "novo número de telefone"
	}
	return fmt.Sprintf("✅ Nome %s com sucesso!\n\nAgora, por favor, digite seu %s.", action, next)
}

func msgPhoneSaved(flowType models.FlowType) string {
	field, next := "Telefone", "e-mail"
	if flowType == models.FlowTypeUpdate {
		field, next = "Novo telefone", "novo e-mail"
	}
	return fmt.Sprintf("✅ %s salvo com sucesso!\n\nPor favor, digite seu %s.", field, next)
}

func msgEmailSaved(flowType models.FlowType) string {
	field, next := "E-mail", "endereço completo"
	if flowType == models.FlowTypeUpdate {
		field, next = "Novo e-mail", "novo endereço completo"
	}
	return fmt.Sprintf("✅ %s salvo com sucesso!\n\nPor favor, digite seu %s.", field, next)
}

func msgConfirmSummary(state *models.ConversationState) string {
	title := "confirme seus dados de cadastro"
	if state.FlowType == models.FlowTypeUpdate {
		title = "confirme seus novos dados"
	}
	return fmt.Sprintf("✅ Endereço salvo com sucesso!\n\nPor favor, %s:\n\n"+
		"👤 Nome: %s\n"+
		"📱 Telefone: %s\n"+
		"📧 Email: %s\n"+
		"🏠 Endereço: %s\n\n"+
		"Está correto? (sim/não)",
		title,
		state.CollectedData[models.FieldName],
		state.CollectedData[models.FieldPhone],
		state.CollectedData[models.FieldEmail],
		state.CollectedData[models.FieldAddress])
}

func msgFlowCancelled(flowType models.FlowType) string {
	action := "cadastro"
	if flowType == models.FlowTypeUpdate {
		action = "atualização"
	}
	return fmt.Sprintf("❌ Muitas tentativas inválidas. O processo de %s foi cancelado. Você pode começar novamente quando quiser.", action)
}

func msgRetriesLeft(errorMessage string, retriesLeft int) string {
	return fmt.Sprintf("%s\n\nTentativas restantes: %d", errorMessage, retriesLeft)
}

func msgFlowCompleted(flowType models.FlowType) string {
	if flowType == models.FlowTypeUpdate {
		return "✅ Solicitação de atualização enviada com sucesso! Seu cadastro será atualizado em breve."
	}
	return "✅ Cadastro realizado com sucesso! Bem-vindo ao nosso sistema."
}
