package dumper

import (
	"bytes"
	"errors"
	"testing"

	wberrors "github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
	"github.com/matryer/is"
)

func TestLoadConfiguration(t *testing.T) {
	is := is.New(t)

	cfg, err := LoadConfiguration(bytes.NewBufferString(configYaml))
	is.NoErr(err)

	is.Equal(cfg.ConceptBaseURI, "https://wiki.example.org/")
	is.Equal(cfg.DataBaseURI, "https://wiki.example.org/wiki/Special:EntityData/")
	is.Equal(len(cfg.Sites), 2)
	is.Equal(cfg.Sites[1].GlobalID, "svwiki")
	is.Equal(cfg.Sites[1].PagePath, "https://sv.wikipedia.org/wiki/$1")

	_, err = cfg.Vocabulary(nil)
	is.NoErr(err)
}

func TestMissingValuesAreDefaulted(t *testing.T) {
	is := is.New(t)

	cfg, err := LoadConfiguration(bytes.NewBufferString("sites: []\n"))
	is.NoErr(err)

	is.Equal(cfg.ConceptBaseURI, "http://www.wikidata.org/")
	is.Equal(cfg.License, DefaultConfig().License)
}

func TestBadBaseURIIsAConfigError(t *testing.T) {
	is := is.New(t)

	cfg, err := LoadConfiguration(bytes.NewBufferString("conceptBaseUri: not a uri\n"))
	is.NoErr(err)

	_, err = cfg.Vocabulary(nil)
	is.True(errors.Is(err, wberrors.ErrConfig))
}

const configYaml string = `
conceptBaseUri: https://wiki.example.org/
dataBaseUri: https://wiki.example.org/wiki/Special:EntityData/
sites:
  - globalId: enwiki
    languageCode: en
    pagePath: https://en.wikipedia.org/wiki/$1
  - globalId: svwiki
    languageCode: sv
    pagePath: https://sv.wikipedia.org/wiki/$1
`
