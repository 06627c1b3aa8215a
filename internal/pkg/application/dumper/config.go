package dumper

import (
	"io"

	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/application/rdfbuilder"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	yaml "gopkg.in/yaml.v2"
)

type Config struct {
	ConceptBaseURI string          `yaml:"conceptBaseUri"`
	DataBaseURI    string          `yaml:"dataBaseUri"`
	License        string          `yaml:"license"`
	Sites          []wikibase.Site `yaml:"sites"`
}

// DefaultConfig describes the URI layout of wikidata.org without any sites.
func DefaultConfig() *Config {
	return &Config{
		ConceptBaseURI: "http://www.wikidata.org/",
		DataBaseURI:    "https://www.wikidata.org/wiki/Special:EntityData/",
		License:        rdfbuilder.DefaultLicense,
	}
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	err = yaml.Unmarshal(buf, cfg)

	return cfg, err
}

// Vocabulary builds the vocabulary for this configuration. Sites passed in are
// used only when the configuration names none of its own.
func (c *Config) Vocabulary(sites []wikibase.Site) (*rdfbuilder.Vocabulary, error) {
	if len(c.Sites) > 0 {
		sites = c.Sites
	}

	return rdfbuilder.NewVocabulary(c.ConceptBaseURI, c.DataBaseURI, c.License, sites)
}
