// Package i18n renders user-facing text in the languages the placement test
// is offered in.
package i18n

import (
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/my"
	ut "github.com/go-playground/universal-translator"
)

// Lang is a supported display language.
type Lang string

const (
	English Lang = "en"
	Burmese Lang = "my"
)

// ParseLang maps a language tag (e.g. "my-MM", "en_US") onto a supported
// language, defaulting to English.
func ParseLang(tag string) Lang {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if strings.HasPrefix(tag, string(Burmese)) {
		return Burmese
	}
	return English
}

// Translator holds the registered message catalogue.
type Translator struct {
	uni *ut.UniversalTranslator
}

// New builds a Translator with every catalogue entry registered.
func New() (*Translator, error) {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, my.New())

	for lang, entries := range catalogue {
		trans, ok := uni.GetTranslator(string(lang))
		if !ok {
			return nil, fmt.Errorf("translator for %q not found", lang)
		}
		for key, text := range entries {
			if err := trans.Add(string(key), text, false); err != nil {
				return nil, fmt.Errorf("register %s/%s: %w", lang, key, err)
			}
		}
	}

	return &Translator{uni: uni}, nil
}

// MustNew is New for package-level setup where a broken catalogue is a bug.
func MustNew() *Translator {
	t, err := New()
	if err != nil {
		panic(err)
	}
	return t
}

// T renders key in lang, substituting {0}, {1}, ... with params. Unknown
// keys fall back to English and then to the generic error text.
func (t *Translator) T(lang Lang, key Key, params ...string) string {
	for _, l := range []Lang{lang, English} {
		trans, found := t.uni.GetTranslator(string(l))
		if !found {
			continue
		}
		if text, err := trans.T(string(key), params...); err == nil {
			return text
		}
	}
	if key != KeyGenericError {
		return t.T(English, KeyGenericError)
	}
	return string(key)
}
