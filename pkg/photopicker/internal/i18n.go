package internal

import (
	"embed"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

var (
	bundleOnce sync.Once
	bundle     *i18n.Bundle
)

func getBundle() *i18n.Bundle {
	bundleOnce.Do(func() {
		bundle = i18n.NewBundle(language.English)
		bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

		for _, path := range []string{"locales/active.en.toml", "locales/active.zh.toml"} {
			if _, err := bundle.LoadMessageFileFS(localeFS, path); err != nil {
				GetInternalLogger().Error("Failed to load message file", "path", path, "error", err)
			}
		}
	})
	return bundle
}

// Localizer resolves the picker's user-facing strings for a language.
type Localizer struct {
	loc *i18n.Localizer
	tag language.Tag
}

// NewLocalizer creates a Localizer for the given BCP 47 tags, most preferred
// first. Unknown or empty tags fall back to English.
func NewLocalizer(langs ...string) *Localizer {
	b := getBundle()

	tag := language.English
	if len(langs) > 0 {
		matcher := language.NewMatcher(b.LanguageTags())
		tags := make([]language.Tag, 0, len(langs))
		for _, l := range langs {
			if t, err := language.Parse(l); err == nil {
				tags = append(tags, t)
			}
		}
		if len(tags) > 0 {
			matched, _, _ := matcher.Match(tags...)
			base, _ := matched.Base()
			tag = language.Make(base.String())
		}
	}

	return &Localizer{loc: i18n.NewLocalizer(b, tag.String()), tag: tag}
}

// Tag returns the resolved language.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// Text localises id. count selects the plural form; pass -1 when the message
// has no plural forms.
func (l *Localizer) Text(id string, count int, data map[string]any) string {
	cfg := &i18n.LocalizeConfig{MessageID: id, TemplateData: data}
	if count >= 0 {
		cfg.PluralCount = count
	}

	s, err := l.loc.Localize(cfg)
	if err != nil {
		GetInternalLogger().Warn("Missing translation", "id", id, "lang", l.tag.String(), "error", err)
		return id
	}
	return s
}
