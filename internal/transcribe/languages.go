package transcribe

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// languages maps the codes the server reports to lowercase display names.
var languages = map[string]string{
	"en":  "english",
	"zh":  "chinese",
	"de":  "german",
	"es":  "spanish",
	"ru":  "russian",
	"ko":  "korean",
	"fr":  "french",
	"ja":  "japanese",
	"pt":  "portuguese",
	"tr":  "turkish",
	"pl":  "polish",
	"ca":  "catalan",
	"nl":  "dutch",
	"ar":  "arabic",
	"sv":  "swedish",
	"it":  "italian",
	"id":  "indonesian",
	"hi":  "hindi",
	"fi":  "finnish",
	"vi":  "vietnamese",
	"he":  "hebrew",
	"uk":  "ukrainian",
	"el":  "greek",
	"ms":  "malay",
	"cs":  "czech",
	"ro":  "romanian",
	"da":  "danish",
	"hu":  "hungarian",
	"ta":  "tamil",
	"no":  "norwegian",
	"th":  "thai",
	"ur":  "urdu",
	"hr":  "croatian",
	"bg":  "bulgarian",
	"lt":  "lithuanian",
	"la":  "latin",
	"mi":  "maori",
	"ml":  "malayalam",
	"cy":  "welsh",
	"sk":  "slovak",
	"te":  "telugu",
	"fa":  "persian",
	"lv":  "latvian",
	"bn":  "bengali",
	"sr":  "serbian",
	"az":  "azerbaijani",
	"sl":  "slovenian",
	"kn":  "kannada",
	"et":  "estonian",
	"mk":  "macedonian",
	"br":  "breton",
	"eu":  "basque",
	"is":  "icelandic",
	"hy":  "armenian",
	"ne":  "nepali",
	"mn":  "mongolian",
	"bs":  "bosnian",
	"kk":  "kazakh",
	"sq":  "albanian",
	"sw":  "swahili",
	"gl":  "galician",
	"mr":  "marathi",
	"pa":  "punjabi",
	"si":  "sinhala",
	"km":  "khmer",
	"sn":  "shona",
	"yo":  "yoruba",
	"so":  "somali",
	"af":  "afrikaans",
	"oc":  "occitan",
	"ka":  "georgian",
	"be":  "belarusian",
	"tg":  "tajik",
	"sd":  "sindhi",
	"gu":  "gujarati",
	"am":  "amharic",
	"yi":  "yiddish",
	"lo":  "lao",
	"uz":  "uzbek",
	"fo":  "faroese",
	"ht":  "haitian creole",
	"ps":  "pashto",
	"tk":  "turkmen",
	"nn":  "nynorsk",
	"mt":  "maltese",
	"sa":  "sanskrit",
	"lb":  "luxembourgish",
	"my":  "myanmar",
	"bo":  "tibetan",
	"tl":  "tagalog",
	"mg":  "malagasy",
	"as":  "assamese",
	"tt":  "tatar",
	"haw": "hawaiian",
	"ln":  "lingala",
	"ha":  "hausa",
	"ba":  "bashkir",
	"jw":  "javanese",
	"su":  "sundanese",
	"yue": "cantonese",
}

// LanguageName returns the display name for a language code. Unknown codes
// return the code itself along with an *UnknownLanguageError.
func LanguageName(code string) (string, error) {
	if name, ok := languages[code]; ok {
		return name, nil
	}
	return code, &UnknownLanguageError{Code: code}
}

// TitleCase capitalizes each word of a language name ("haitian creole" →
// "Haitian Creole").
func TitleCase(name string) string {
	return cases.Title(language.English).String(name)
}
