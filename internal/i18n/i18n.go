// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// Package i18n translates the messages printed by the command line
// interface. Translations are embedded YAML files under locales/.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"gopkg.in/yaml.v3"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/logging"
)

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	mu        sync.RWMutex
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	current   string
)

// Init loads every embedded locale and activates lang. Unknown languages
// fall back to English.
func Init(lang string) {
	b := i18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		logging.Errorf("read embedded locales: %v", err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile(path.Join("locales", f.Name()))
		if err != nil {
			logging.Errorf("read locale %s: %v", f.Name(), err)
			continue
		}
		if _, err := b.ParseMessageFileBytes(data, f.Name()); err != nil {
			logging.Errorf("parse locale %s: %v", f.Name(), err)
		}
	}

	mu.Lock()
	bundle = b
	localizer = i18n.NewLocalizer(b, lang)
	current = lang
	mu.Unlock()
}

// SetLang changes the active language.
func SetLang(lang string) {
	Init(lang)
}

// GetLang returns the active language tag.
func GetLang() string {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// GetAvailableLocales maps each embedded language tag to its own name for
// itself, e.g. "de" to "Deutsch".
func GetAvailableLocales() map[string]string {
	ensure()
	mu.RLock()
	defer mu.RUnlock()
	out := make(map[string]string)
	for _, tag := range bundle.LanguageTags() {
		name := display.Self.Name(tag)
		if name == "" {
			name = tag.String()
		}
		out[tag.String()] = name
	}
	return out
}

// T translates messageID. A single map argument is used as template data;
// any other arguments are applied fmt style to the translation. Unknown IDs
// are returned unchanged.
func T(messageID string, args ...any) string {
	ensure()
	mu.RLock()
	l := localizer
	mu.RUnlock()

	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(args) == 1 {
		if data, ok := args[0].(map[string]any); ok {
			cfg.TemplateData = data
			args = nil
		}
	}
	msg, err := l.Localize(cfg)
	if err != nil {
		msg = messageID
	}
	if len(args) > 0 && strings.Contains(msg, "%") {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

func ensure() {
	mu.RLock()
	ready := localizer != nil
	mu.RUnlock()
	if !ready {
		Init("en")
	}
}
