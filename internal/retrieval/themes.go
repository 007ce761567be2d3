package retrieval

import "strings"

// Theme is a query-detected topic used to boost and backfill thematically
// load-bearing chunks. Label doubles as the corpus tag the theme maps to.
type Theme struct {
	Label    string
	Triggers []string
}

// ThemeSet is the keyword-to-theme configuration. Detection order follows
// slice order, which keeps backfill deterministic.
type ThemeSet []Theme

// DefaultThemes covers the recurring housing-and-utilities topics. Trigger
// keywords are stems, matched as substrings of the lower-cased query so
// inflected forms are caught.
func DefaultThemes() ThemeSet {
	return ThemeSet{
		{Label: "авария", Triggers: []string{"авари", "протечк", "затопи", "залив", "прорыв", "отключени"}},
		{Label: "тариф", Triggers: []string{"тариф", "начислени", "квитанц", "плата за", "перерасчет", "перерасчёт"}},
		{Label: "счетчик", Triggers: []string{"счетчик", "счётчик", "ипу", "показани", "поверк"}},
		{Label: "тко", Triggers: []string{"тко", "мусор", "отход", "контейнер", "вывоз"}},
		{Label: "собрание", Triggers: []string{"собрани", "осс", "голосовани", "кворум", "протокол"}},
		{Label: "капремонт", Triggers: []string{"капремонт", "капитальн", "взнос", "фонд ремонта"}},
	}
}

// Detect returns the labels of every theme whose trigger occurs as a
// substring of the query, in configuration order. The query is lower-cased
// by the caller.
func (ts ThemeSet) Detect(loweredQuery string) []string {
	var labels []string
	for _, th := range ts {
		for _, trig := range th.Triggers {
			if strings.Contains(loweredQuery, trig) {
				labels = append(labels, th.Label)
				break
			}
		}
	}
	return labels
}
