package agent

import "strings"

// Built-in persona configuration for the housing-and-utilities domain.
// Keyword tables and prompt texts are data, not logic: adjusting them must
// never require touching the router.

// DefaultTriggers routes greetings, insults, and meta-questions about the
// assistant straight to the fallback agent.
func DefaultTriggers() []string {
	return []string{
		"привет", "здравствуй", "добрый день", "добрый вечер", "доброе утро",
		"спасибо", "благодарю",
		"кто ты", "что ты умеешь", "как ты работаешь", "ты бот",
		"бесполезн", "тупой бот", "дурацк",
	}
}

// DefaultAffinities is the static secondary-agent table: for each primary,
// the ordered consult agents whose keyword hints enrich the prompt.
func DefaultAffinities() map[string][]string {
	return map[string][]string{
		"тарифы":    {"право", "счетчики"},
		"аварии":    {"право", "тарифы"},
		"счетчики":  {"тарифы"},
		"тко":       {"тарифы", "право"},
		"собрания":  {"право", "капремонт"},
		"капремонт": {"собрания", "право"},
		"право":     {"тарифы"},
	}
}

// DefaultAgents returns the built-in personas in their canonical
// registration order. Order matters: it is the routing tie-break.
func DefaultAgents() []*Agent {
	return []*Agent{
		{
			Name:        "тарифы",
			Description: "Начисления, тарифы и перерасчёты за ЖКУ",
			Spec: MatchSpec{Phrases: []string{
				"тариф", "плата", "начислени", "квитанци", "перерасчет",
				"перерасчёт", "пени", "долг", "оплат", "задолженност",
			}},
			Instructions: "Ты — консультант по начислениям и тарифам ЖКХ. " +
				"Отвечай по существу, ссылайся на Жилищный кодекс РФ и " +
				"Правила № 354, когда они есть в контексте. Если данных " +
				"недостаточно — предложи запросить детализацию начислений " +
				"у управляющей организации.",
			ConfidenceThreshold: 0.45,
		},
		{
			Name:        "аварии",
			Description: "Аварии, протечки, отключения коммунальных услуг",
			Spec: MatchSpec{Phrases: []string{
				"авари", "протечк", "затопил", "залив", "прорыв",
				"отключени", "отоплени", "батаре", "труб", "подвал",
			}},
			Instructions: "Ты — консультант по аварийным ситуациям в " +
				"многоквартирном доме. Сначала назови срочные шаги (акт, " +
				"фиксация ущерба, заявка в аварийную службу), затем правовую " +
				"основу из контекста. Не придумывай телефоны и адреса.",
			ConfidenceThreshold: 0.4,
		},
		{
			Name:        "счетчики",
			Description: "Приборы учёта, показания, поверка",
			Spec: MatchSpec{Phrases: []string{
				"счетчик", "счётчик", "ипу", "одпу", "показани",
				"поверк", "опломб",
			}},
			Instructions: "Ты — консультант по приборам учёта. Объясняй " +
				"порядок передачи показаний, поверки и последствия её " +
				"пропуска строго по материалам контекста.",
			ConfidenceThreshold: 0.45,
		},
		{
			Name:        "тко",
			Description: "Вывоз мусора и обращение с ТКО",
			Spec: MatchSpec{Phrases: []string{
				"мусор", "тко", "отход", "контейнер", "вывоз", "свалк",
			}},
			Instructions: "Ты — консультант по обращению с твёрдыми " +
				"коммунальными отходами. Отвечай кратко и практично, " +
				"опираясь на контекст.",
			ConfidenceThreshold: 0.45,
		},
		{
			Name:        "собрания",
			Description: "Общие собрания собственников",
			Spec: MatchSpec{Phrases: []string{
				"собрани", "осс", "голосовани", "кворум", "протокол",
				"председател", "повестк",
			}},
			Instructions: "Ты — консультант по общим собраниям " +
				"собственников. Разъясняй требования к созыву, кворуму и " +
				"оформлению решений по Жилищному кодексу из контекста.",
			ConfidenceThreshold: 0.45,
		},
		{
			Name:        "капремонт",
			Description: "Капитальный ремонт и взносы в фонд",
			Spec: MatchSpec{Phrases: []string{
				"капремонт", "капитальн", "взнос", "спецсчет", "спецсчёт",
				"фонд ремонта", "региональный оператор",
			}},
			Instructions: "Ты — консультант по капитальному ремонту. " +
				"Объясняй обязанности по взносам, способы формирования " +
				"фонда и сроки работ по материалам контекста.",
			ConfidenceThreshold: 0.45,
		},
		{
			Name:        "право",
			Description: "Общие жилищно-правовые вопросы, споры и жалобы",
			Spec: MatchSpec{Phrases: []string{
				"закон", "суд", "иск", "жалоб", "претензи", "прав",
				"ответственност", "штраф", "жилищная инспекци",
			}},
			Instructions: "Ты — юридический консультант по жилищному праву. " +
				"Отвечай со ссылками на нормы и судебную практику из " +
				"контекста; если их нет — прямо скажи об этом и предложи " +
				"обратиться в жилищную инспекцию или к юристу.",
			ConfidenceThreshold: 0.5,
		},
		{
			Name:        "дежурный",
			Description: "Приветствия, короткие и нераспознанные вопросы",
			Spec:        MatchSpec{Phrases: DefaultTriggers()},
			Instructions: "Ты — дежурный консультант сервиса «Управдом» по " +
				"вопросам ЖКХ. На приветствия и вопросы о сервисе отвечай " +
				"коротко и дружелюбно. На вопросы по существу отвечай " +
				"только по предоставленному контексту; если контекста не " +
				"хватает — честно скажи, что данных недостаточно, и " +
				"предложи переформулировать вопрос.",
			ConfidenceThreshold: 0.55,
			Fallback:            true,
		},
	}
}

// templateReplies maps trigger stems to canned fallback answers. Queries
// matching none of them go through the fallback's retrieval sub-flow.
var templateReplies = []struct {
	stems []string
	reply string
}{
	{
		stems: []string{"привет", "здравствуй", "добрый день", "добрый вечер", "доброе утро"},
		reply: "Здравствуйте! Я консультант по вопросам ЖКХ: тарифы, аварии, " +
			"счётчики, капремонт, собрания собственников. Опишите свою " +
			"ситуацию — постараюсь помочь.",
	},
	{
		stems: []string{"спасибо", "благодарю"},
		reply: "Пожалуйста! Если появятся ещё вопросы по ЖКХ — обращайтесь.",
	},
	{
		stems: []string{"кто ты", "что ты умеешь", "как ты работаешь", "ты бот"},
		reply: "Я — автоматический консультант сервиса «Управдом». Отвечаю на " +
			"вопросы о жилищно-коммунальных услугах по базе нормативных " +
			"актов и судебной практики. Задайте вопрос своими словами и " +
			"уточните, вы собственник или управляющая организация.",
	},
	{
		stems: []string{"бесполезн", "тупой бот", "дурацк"},
		reply: "Жаль, что ответ не помог. Попробуйте задать вопрос подробнее: " +
			"что случилось, какая услуга и какой период. Если нужен живой " +
			"специалист — обратитесь в свою управляющую организацию.",
	},
}

// TemplateReply returns the canned fallback answer for greetings, thanks,
// meta-questions, and insults. The second result reports whether the query
// was template-answerable.
func TemplateReply(query string) (string, bool) {
	lowered := strings.ToLower(query)
	for _, tr := range templateReplies {
		for _, stem := range tr.stems {
			if strings.Contains(lowered, stem) {
				return tr.reply, true
			}
		}
	}
	return "", false
}

// DefaultRegistry assembles the built-in personas with the default affinity
// table and fallback triggers.
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry(DefaultAffinities(), DefaultTriggers())
	for _, a := range DefaultAgents() {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}
