package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for book documents. Text arrives accent-folded and lower-cased, so
// the standard analyzer only needs to tokenize.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()

	for _, field := range []string{"titulo", "autor"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.IncludeTermVectors = true
		docMapping.AddFieldMappingsAt(field, fm)
	}

	for _, field := range []string{"categoria", "idioma", "sinopsis", "criticas"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = false
		docMapping.AddFieldMappingsAt(field, fm)
	}

	for _, field := range []string{"id", "isbn"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		docMapping.AddFieldMappingsAt(field, fm)
	}

	yearMapping := bleve.NewNumericFieldMapping()
	docMapping.AddFieldMappingsAt("anio", yearMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
