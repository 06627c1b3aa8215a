package wikibase

// Site is a wiki that sitelinks may point to. PagePath holds a $1 placeholder for
// the page title, e.g. https://en.wikipedia.org/wiki/$1
type Site struct {
	GlobalID     string `yaml:"globalId"`
	LanguageCode string `yaml:"languageCode"`
	PagePath     string `yaml:"pagePath"`
}
