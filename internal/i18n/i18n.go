package i18n

import (
	_ "embed"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

//go:embed translations.yml
var translationsYAML []byte

var state = struct {
	once         sync.Once
	translations map[string]map[string]string
}{}

func load() {
	dict := map[string]map[string]string{}
	if err := yaml.Unmarshal(translationsYAML, &dict); err != nil {
		log.WithField("error", err.Error()).Error("cant unmarshal i18n")
	}
	state.translations = dict
}

// Get returns the translation of key, which is the English text itself.
func Get(key, lang string) string {
	if lang == "" || strings.EqualFold(lang, "en") {
		return key
	}
	state.once.Do(load)
	if res, ok := state.translations[key][strings.ToUpper(lang)]; ok && res != "" {
		return res
	}
	log.WithField("key", key).Trace("no translation")
	return key
}
