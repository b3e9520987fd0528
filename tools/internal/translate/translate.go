// Package translate localizes the console output of fwimage and acpiprobe.
// Messages are written as en-US format strings and rendered for the locale
// reported by the host.
package translate

import (
	"log"

	"github.com/jeandeaual/go-locale"
	"golang.org/x/text/message"
)

// defaultLocale is used when the host reports no locale.
const defaultLocale = "en-US"

var printer = newPrinter(hostLocales())

func hostLocales() []string {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("vfuzz tools: cannot detect host locale, using %s: %v", defaultLocale, err)
	}
	return locales
}

func newPrinter(locales []string) *message.Printer {
	if len(locales) == 0 {
		locales = []string{defaultLocale}
	}
	return message.NewPrinter(message.MatchLanguage(locales...))
}

// From renders the en-US format key with args for the host locale.
func From(key message.Reference, args ...any) string {
	return printer.Sprintf(key, args...)
}
