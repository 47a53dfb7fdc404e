// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry with privacy protection.
// User input problems, cancellations and missing records are never reported.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}
	switch ee.Category {
	case CategoryValidation, CategoryCancellation, CategoryNotFound:
		return
	}

	scrubbedMessage := scrubMessageForPrivacy(fmt.Sprintf("[%s] %s", ee.Category, ee.GetMessage()))

	sentry.WithScope(func(scope *sentry.Scope) {
		errorTitle := generateErrorTitle(ee)

		scope.SetTag("error_title", errorTitle)
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))

		for key, value := range ee.GetContext() {
			scrubbedValue := value
			if strValue, ok := value.(string); ok {
				scrubbedValue = scrubMessageForPrivacy(strValue)
			}
			scope.SetContext(key, map[string]any{"value": scrubbedValue})
		}

		level := getErrorLevel(ee.Category)
		scope.SetLevel(level)
		scope.SetFingerprint([]string{errorTitle, ee.GetComponent(), string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = scrubbedMessage
		event.Level = level
		event.Exception = []sentry.Exception{{
			Type:  errorTitle,
			Value: scrubbedMessage,
		}}

		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// generateErrorTitle creates a meaningful error title for Sentry based on enhanced error context
func generateErrorTitle(ee *EnhancedError) string {
	var titleParts []string

	if component := ee.GetComponent(); component != ComponentUnknown {
		titleParts = append(titleParts, titleCase(component))
	}

	if categoryTitle := formatCategoryForTitle(ee.Category); categoryTitle != "" {
		titleParts = append(titleParts, categoryTitle)
	}

	if operation, ok := ee.GetContext()["operation"].(string); ok && operation != "" {
		titleParts = append(titleParts, formatOperationForTitle(operation))
	}

	if len(titleParts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}

	return strings.Join(titleParts, " ")
}

// formatCategoryForTitle converts error categories to human-readable titles
func formatCategoryForTitle(category ErrorCategory) string {
	switch category {
	case CategoryNetwork:
		return "Network Error"
	case CategoryHTTP:
		return "HTTP Error"
	case CategoryDecode:
		return "Decode Error"
	case CategoryUpload:
		return "Photo Upload Error"
	case CategoryCleanup:
		return "Photo Cleanup Error"
	case CategoryStorage:
		return "Preference Storage Error"
	case CategoryConfiguration:
		return "Configuration Error"
	default:
		return string(category)
	}
}

// formatOperationForTitle converts operation context to human-readable format
func formatOperationForTitle(operation string) string {
	words := strings.Fields(strings.ReplaceAll(operation, "_", " "))
	for i, word := range words {
		words[i] = titleCase(word)
	}
	return strings.Join(words, " ")
}

// titleCase capitalizes the first letter of a string
func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// getErrorLevel returns appropriate Sentry level based on category
func getErrorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryHTTP, CategoryCleanup, CategoryNotification:
		return sentry.LevelWarning // Often transient
	default:
		return sentry.LevelError
	}
}

var (
	reporterMu              sync.RWMutex
	globalTelemetryReporter TelemetryReporter
)

// SetTelemetryReporter sets the global telemetry reporter; nil disables reporting
func SetTelemetryReporter(reporter TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	globalTelemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

// GetTelemetryReporter returns the current telemetry reporter
func GetTelemetryReporter() TelemetryReporter {
	reporterMu.RLock()
	defer reporterMu.RUnlock()
	return globalTelemetryReporter
}

// reportToTelemetry reports an error to the configured telemetry system
func reportToTelemetry(ee *EnhancedError) {
	if reporter := GetTelemetryReporter(); reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

// Pre-compiled scrubbing patterns
var (
	urlQueryRegex   = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	queryParamRegex = regexp.MustCompile(`[?&]([^=\s]+)=([^&\s]+)`)
	sensitiveRegexs = []*regexp.Regexp{
		regexp.MustCompile(`api[_-]?key[=:]\S+`),
		regexp.MustCompile(`token[=:]\S+`),
		regexp.MustCompile(`auth[=:]\S+`),
		regexp.MustCompile(`"key"\s*:\s*"[^"]*"`), // storage keys in JSON bodies
		regexp.MustCompile(`[0-9a-fA-F]{32,}`),
	}
)

// scrubMessageForPrivacy removes query strings, credentials and storage keys
func scrubMessageForPrivacy(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	scrubbed = queryParamRegex.ReplaceAllString(scrubbed, "?[REDACTED]")
	for _, re := range sensitiveRegexs {
		scrubbed = re.ReplaceAllString(scrubbed, "[REDACTED]")
	}
	return scrubbed
}
