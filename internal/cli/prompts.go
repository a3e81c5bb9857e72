package cli

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
)

// PromptForTicker prompts the user to enter a stock ticker symbol
func PromptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the stock ticker symbol (e.g., AAPL, MSFT, GOOGL):",
		Help:    "Please enter a valid stock ticker symbol",
	}

	err := survey.AskOne(prompt, &ticker, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(strings.ToUpper(val.(string)))
		if len(str) == 0 {
			return fmt.Errorf("ticker symbol cannot be empty")
		}
		if len(str) > 10 {
			return fmt.Errorf("ticker symbol too long (max 10 characters)")
		}
		matched, _ := regexp.MatchString(`^[A-Z0-9.-]+$`, str)
		if !matched {
			return fmt.Errorf("invalid ticker format (use letters, numbers, dots, and hyphens only)")
		}
		return nil
	}))

	if err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.ToUpper(ticker)), nil
}

// PromptForDate prompts the user to enter a retrieval date
func PromptForDate() (string, error) {
	var dateStr string
	prompt := &survey.Input{
		Message: "Enter the date (YYYY-MM-DD) or press Enter for today:",
		Help:    "Format: YYYY-MM-DD (e.g., 2024-01-15). Leave empty for today's date.",
		Default: time.Now().Format("2006-01-02"),
	}

	err := survey.AskOne(prompt, &dateStr, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(val.(string))
		if str == "" {
			return nil
		}
		parsed, err := time.Parse("2006-01-02", str)
		if err != nil {
			return fmt.Errorf("invalid date format, use YYYY-MM-DD")
		}
		if parsed.After(time.Now().AddDate(0, 0, 1)) {
			return fmt.Errorf("date cannot be in the future")
		}
		return nil
	}))

	if err != nil {
		return "", err
	}

	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Now().Format("2006-01-02"), nil
	}
	return dateStr, nil
}
