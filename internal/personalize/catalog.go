package personalize

import "sort"

type Template struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Body        string `json:"body"`
}

// Custom is the key for a caller supplied message with no stock body.
const Custom = "personalizada"

var builtin = map[string]Template{
	"primeiro_contato": {
		Key:         "primeiro_contato",
		Name:        "Primeiro Contato",
		Description: "Mensagem inicial para novos leads",
		Body: "Olá {nome}! 👋\n\nEncontrei seu contato e trabalhamos com soluções de qualidade para {tipo_servico}.\n\n" +
			"Gostaria de saber mais sobre nossos serviços?\n\nAguardo seu retorno! 😊",
	},
	"apresentacao": {
		Key:         "apresentacao",
		Name:        "Apresentação da Empresa",
		Description: "Apresentação completa dos serviços",
		Body: "Olá {nome}! 👋\n\nGostaria de me apresentar.\n\n✅ *O que oferecemos:*\n" +
			"• Produtos de alta qualidade\n• Preços competitivos\n• Atendimento personalizado\n• Entrega rápida\n\n" +
			"📍 Atendemos em {cidade} e região!\n\nPosso enviar mais informações? 📲",
	},
	"follow_up": {
		Key:         "follow_up",
		Name:        "Follow-up",
		Description: "Mensagem de acompanhamento",
		Body: "Olá {nome}!\n\nTudo bem com você? 😊\n\nEstou passando para saber se teve a oportunidade de avaliar nossa proposta.\n\n" +
			"Ficou com alguma dúvida? Estou à disposição para ajudar!",
	},
	"promocao": {
		Key:         "promocao",
		Name:        "Promoção",
		Description: "Mensagem promocional",
		Body: "🎉 *PROMOÇÃO ESPECIAL* 🎉\n\nOlá {nome}!\n\nTemos uma oferta exclusiva para você de {cidade}!\n\n" +
			"💰 *Condições especiais* por tempo limitado!\n\n📲 Responda essa mensagem!",
	},
	"agradecimento": {
		Key:         "agradecimento",
		Name:        "Agradecimento",
		Description: "Agradecer pelo contato/compra",
		Body: "Olá {nome}! 🙏\n\nMuito obrigado pelo seu contato!\n\nQualquer dúvida, estou à disposição!\n\nConte sempre conosco! 💪",
	},
	"lembrete": {
		Key:         "lembrete",
		Name:        "Lembrete",
		Description: "Lembrete de orçamento/proposta",
		Body: "Olá {nome}! 📋\n\nPassando para lembrar sobre o orçamento que enviamos.\n\n" +
			"Ele ainda está válido e você pode aproveitar as condições especiais!\n\nAguardo seu retorno! 😊",
	},
	Custom: {
		Key:         Custom,
		Name:        "Mensagem Personalizada",
		Description: "Escreva sua própria mensagem",
	},
}

// Lookup returns the stock template registered under key.
func Lookup(key string) (Template, bool) {
	t, ok := builtin[key]
	return t, ok
}

// List returns the stock templates sorted by key.
func List() []Template {
	out := make([]Template, 0, len(builtin))
	for _, t := range builtin {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
