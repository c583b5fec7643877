package locales

import (
	"embed"
	"encoding/json"
	"log"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed *.json
var localeFS embed.FS

var (
	bundle          *i18n.Bundle
	defaultLanguage language.Tag // Store the parsed default language tag
)

// buttonCommands maps reply keyboard button message IDs to their canonical
// command. Used to turn a localized button press back into a command word.
var buttonCommands = map[string]string{
	"BtnStartImport": "start",
	"BtnStatus":      "status",
	"BtnStopImport":  "stop",
	"BtnHelp":        "help",
}

// knownCommands is the set of canonical command words the session machine understands.
var knownCommands = map[string]bool{
	"start":  true,
	"status": true,
	"stop":   true,
	"help":   true,
}

// Init initializes the i18n bundle by loading language files and setting the default language.
func Init(defaultLangCode string) {
	var err error
	defaultLanguage, err = language.Parse(defaultLangCode)
	if err != nil {
		log.Printf("WARN: Failed to parse default language code '%s': %v. Falling back to English.", defaultLangCode, err)
		defaultLanguage = language.English
	}

	bundle = i18n.NewBundle(defaultLanguage)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	fs, err := localeFS.ReadDir(".")
	if err != nil {
		log.Fatalf("Failed to read embedded locales directory: %v", err)
	}

	loadedFiles := 0
	for _, file := range fs {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".json") {
			if _, err := bundle.LoadMessageFileFS(localeFS, file.Name()); err != nil {
				log.Printf("WARN: Failed to load message file '%s': %v", file.Name(), err)
			} else {
				loadedFiles++
			}
		}
	}
	if loadedFiles == 0 {
		log.Fatalf("No message files loaded from locales/")
	}
	log.Printf("i18n bundle initialized with %d file(s). Default language: %s", loadedFiles, defaultLanguage.String())
}

// GetDefaultLanguageTag returns the configured default language tag.
func GetDefaultLanguageTag() language.Tag {
	if bundle == nil {
		log.Panicln("Attempted to get default language tag before i18n bundle initialization.")
	}
	return defaultLanguage
}

// NewLocalizer creates a localizer for the given language preferences.
// It takes language tags (e.g., "en", "ru") or Accept-Language header string.
func NewLocalizer(langPrefs ...string) *i18n.Localizer {
	if bundle == nil {
		log.Panicln("Attempted to create localizer before i18n bundle initialization.")
	}
	return i18n.NewLocalizer(bundle, langPrefs...)
}

// GetMessage retrieves and formats a message by its ID using the provided localizer.
// templateData is an optional map for template variables; pluralCount an optional
// pointer for pluralization rules.
func GetMessage(localizer *i18n.Localizer, msgID string, templateData map[string]interface{}, pluralCount *int) string {
	config := &i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: templateData,
	}
	if pluralCount != nil {
		config.PluralCount = *pluralCount
	}

	localizedMsg, err := localizer.Localize(config)
	if err != nil {
		log.Printf("ERROR: Failed to localize message ID '%s': %v. Falling back to English.", msgID, err)

		englishLocalizer := i18n.NewLocalizer(bundle, language.English.String())
		fallbackMsg, fallbackErr := englishLocalizer.Localize(config)
		if fallbackErr == nil {
			return fallbackMsg
		}

		log.Printf("ERROR: Failed to localize message ID '%s' in English fallback as well. Returning ID.", msgID)
		return msgID
	}
	return localizedMsg
}

// CanonicalCommand normalizes free-form message text into a canonical command
// word ("start", "status", "stop", "help"). It accepts slash commands with an
// optional @botname suffix and localized reply keyboard button labels in any
// loaded language. Returns "" when the text is not a recognized command.
func CanonicalCommand(text string) string {
	if bundle == nil {
		log.Panicln("Attempted to canonicalize a command before i18n bundle initialization.")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "/") {
		word := strings.TrimPrefix(trimmed, "/")
		if i := strings.IndexAny(word, "@ "); i >= 0 {
			word = word[:i]
		}
		word = strings.ToLower(word)
		if knownCommands[word] {
			return word
		}
		return ""
	}

	// Match localized button labels across every loaded language.
	for _, tag := range bundle.LanguageTags() {
		localizer := i18n.NewLocalizer(bundle, tag.String())
		for msgID, command := range buttonCommands {
			if GetMessage(localizer, msgID, nil, nil) == trimmed {
				return command
			}
		}
	}
	return ""
}
