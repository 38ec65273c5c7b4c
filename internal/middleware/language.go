package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-placement/internal/i18n"
)

// ContextKeyLang is the Gin context key for the negotiated language.
const ContextKeyLang = "lang"

// Language resolves the display language from ?lang=, the "lang" cookie, then
// the first Accept-Language tag, falling back to def.
func Language(def i18n.Lang) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextKeyLang, negotiate(c, def))
		c.Next()
	}
}

// GetLang returns the language chosen by Language, or English.
func GetLang(c *gin.Context) i18n.Lang {
	if v, ok := c.Get(ContextKeyLang); ok {
		if lang, ok := v.(i18n.Lang); ok {
			return lang
		}
	}
	return i18n.English
}

func negotiate(c *gin.Context, def i18n.Lang) i18n.Lang {
	if q := c.Query("lang"); q != "" {
		return i18n.ParseLang(q)
	}
	if cookie, err := c.Cookie("lang"); err == nil && cookie != "" {
		return i18n.ParseLang(cookie)
	}
	if header := c.GetHeader("Accept-Language"); header != "" {
		first := strings.SplitN(header, ",", 2)[0]
		first = strings.SplitN(first, ";", 2)[0]
		return i18n.ParseLang(strings.TrimSpace(first))
	}
	return def
}
