package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoData is returned when no ticker produced any price data
	ErrNoData = errors.New("no data found for selected tickers")
	// ErrInsufficientData is returned when a price table has fewer than two rows
	ErrInsufficientData = errors.New("at least two price rows are required")
	// ErrNoTickers is returned when the input names no tickers
	ErrNoTickers = errors.New("no tickers given")
	// ErrInvalidDateRange is returned when start is after end
	ErrInvalidDateRange = errors.New("start date is after end date")

	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInvalidMode      = errors.New("invalid mode")
	ErrInvalidChartType = errors.New("invalid chart type")
	ErrInvalidLanguage  = errors.New("invalid language")
)

// Language is the narrative and message language
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHebrew  Language = "he"
)

// ParseLanguage accepts language codes and names
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "english":
		return LanguageEnglish, nil
	case "he", "hebrew", "iw", "עברית":
		return LanguageHebrew, nil
	}
	return "", ErrInvalidLanguage
}

// IsRTL reports whether the language is written right to left
func (l Language) IsRTL() bool {
	return l == LanguageHebrew
}

// NoDataMessage is the user-facing message for ErrNoData
func (l Language) NoDataMessage() string {
	if l == LanguageHebrew {
		return "לא נמצאו נתונים עבור המניות שנבחרו או שאירעה שגיאה."
	}
	return "No data found for selected tickers or an error occurred."
}

// TickerInfo holds secondary per-ticker data. Ratios are raw (0.005 means 0.5%).
type TickerInfo struct {
	Symbol        string   `json:"symbol"`
	DividendYield *float64 `json:"dividend_yield"`
	ExpenseRatio  *float64 `json:"expense_ratio"`
}

// AnalysisResult is the output of one pipeline run
type AnalysisResult struct {
	ID        uuid.UUID     `json:"id"`
	Tickers   []string      `json:"tickers"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Language  Language      `json:"language"`
	Prices    *PriceTable   `json:"prices"`
	Metrics   *MetricsTable `json:"metrics"`
	Narrative Narrative     `json:"narrative"`
	Report    []byte        `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewAnalysisResult creates a result with a fresh id
func NewAnalysisResult(tickers []string, start, end time.Time, lang Language) *AnalysisResult {
	return &AnalysisResult{
		ID:        uuid.New(),
		Tickers:   tickers,
		Start:     start,
		End:       end,
		Language:  lang,
		CreatedAt: time.Now().UTC(),
	}
}
