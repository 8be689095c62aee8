package main

import (
	"strings"
	"time"

	"buyside-ai/e2e/mocks"
)

// fixtureStart is the first trading day of the seeded price history
var fixtureStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// seedFixtures loads the price, ticker info and narrative fixtures used by the
// browser tests. ZZZZ is deliberately absent so it exercises the no-data path.
func seedFixtures(m *mocks.MockServer) {
	m.SetPrices("AAA", mocks.DailyCloses(fixtureStart, 100, 90, 99))
	m.SetPrices("BBB", mocks.DailyCloses(fixtureStart, 100, 110, 120))
	m.SetPrices("SPY", yearOfCloses(fixtureStart, 470, 0.0004))
	m.SetPrices("QQQ", yearOfCloses(fixtureStart, 400, 0.0007))

	m.SetTickerInfo("SPY", mocks.TickerInfoFixture{ETF: true, DividendYield: "0.0131", ExpenseRatio: "0.0009"})
	m.SetTickerInfo("QQQ", mocks.TickerInfoFixture{ETF: true, DividendYield: "0.0058", ExpenseRatio: "0.002"})
	m.SetTickerInfo("AAA", mocks.TickerInfoFixture{DividendYield: "0.021"})

	m.SetCompletionFunc(narrate)
}

// yearOfCloses returns a year of weekday closes growing by drift per day with a
// small weekly wobble, so charts and drawdowns have something to show.
func yearOfCloses(start time.Time, first, drift float64) mocks.PriceFixture {
	var f mocks.PriceFixture
	price := first
	for d := start; d.Before(start.AddDate(1, 0, 0)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		wobble := 1.0
		switch d.Weekday() {
		case time.Friday:
			wobble = 0.995
		case time.Monday:
			wobble = 1.005
		}
		price *= (1 + drift) * wobble
		f.Dates = append(f.Dates, d)
		f.Closes = append(f.Closes, price)
	}
	return f
}

// narrate answers in the language of the system prompt
func narrate(messages []mocks.Message) string {
	if len(messages) > 0 && strings.Contains(messages[0].Content, "עברית") {
		return "**סיכום:** המניה עם התשואה המצטברת הגבוהה ביותר הובילה בתקופה."
	}
	return "**Summary:** the ticker with the highest cumulative return led the period."
}
