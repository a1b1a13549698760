package service

import (
	"errors"

	"junket-admin/internal/api"
	"junket-admin/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is the one-line outcome an operator sees after an action.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

var printer = message.NewPrinter(language.English)

func success(format string, args ...any) Notice {
	return Notice{Level: LevelSuccess, Message: printer.Sprintf(format, args...)}
}

func warning(format string, args ...any) Notice {
	return Notice{Level: LevelWarning, Message: printer.Sprintf(format, args...)}
}

// Describe renders err for an operator. Backend messages are shown as is.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	if apiErr, ok := api.AsError(err); ok {
		if apiErr.Code == api.CodeDuplicateImport {
			if apiErr.Month != "" {
				return printer.Sprintf("Data for %s has already been imported", domain.DisplayMonth(apiErr.Month))
			}
			return "Data for this month has already been imported"
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	if errors.Is(err, ErrActionNotAllowed) || errors.Is(err, ErrBatchNotFound) {
		return err.Error()
	}

	var f *Failure
	if errors.As(err, &f) {
		return f.Fallback
	}
	if errors.Is(err, api.ErrTransport) {
		return "Could not reach the admin server"
	}
	return "Something went wrong"
}

// wholeYen rounds an amount the way totals are displayed.
func wholeYen(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
