package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed locales/*.json
var localeFS embed.FS

// Catalog resolves message keys to user-facing text for one locale. The
// locale files are embedded so deployments cannot drift from the binary.
type Catalog struct {
	locale   string
	messages map[string]string
}

func New(locale string) (*Catalog, error) {
	data, err := localeFS.ReadFile("locales/" + locale + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown locale %q: %w", locale, err)
	}

	messages := make(map[string]string)
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}

	return &Catalog{locale: locale, messages: messages}, nil
}

func MustNew(locale string) *Catalog {
	c, err := New(locale)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Locale() string {
	return c.locale
}

// T resolves key and formats args into the message. Unknown keys come back
// as the key itself so a missing translation shows up instead of failing.
func (c *Catalog) T(key string, args ...any) string {
	msg, ok := c.messages[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
