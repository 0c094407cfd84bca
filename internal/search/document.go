// Package search provides full-text search over the book catalogue using an in-memory Bleve index.
//
// Text is accent-folded before indexing and querying, so "garcia marquez" finds "García Márquez".
package search

import (
	"strconv"
	"strings"

	"github.com/alquilibros/alquilibros-server/internal/query"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

// BookDocument is the indexed form of a libros record.
type BookDocument struct {
	ID        string
	Titulo    string
	Autor     string
	Categoria string
	Idioma    string
	ISBN      string
	Sinopsis  string
	Criticas  string
	Anio      int
}

// DocumentFromRecord extracts the searchable fields of a book record. Missing or mistyped fields are left empty.
func DocumentFromRecord(rec store.Record) *BookDocument {
	str := func(key string) string {
		s, _ := rec[key].(string)
		return s
	}
	doc := &BookDocument{
		ID:        rec.ID(),
		Titulo:    str("titulo"),
		Autor:     str("autor"),
		Categoria: str("categoria"),
		Idioma:    str("idioma"),
		ISBN:      str("isbn"),
		Sinopsis:  str("sinopsis"),
		Criticas:  str("criticas"),
	}
	switch v := rec["anioPublicacion"].(type) {
	case float64:
		doc.Anio = int(v)
	case string:
		doc.Anio, _ = strconv.Atoi(v)
	}
	return doc
}

// NormalizeISBN drops separators so "978-84-376-0494-7" and "9788437604947" index the same.
func NormalizeISBN(isbn string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.ToUpper(isbn))
}

// toMap converts the document to the field names of the index mapping.
func (d *BookDocument) toMap() map[string]any {
	return map[string]any{
		"id":        d.ID,
		"titulo":    query.Fold(d.Titulo),
		"autor":     query.Fold(d.Autor),
		"categoria": query.Fold(d.Categoria),
		"idioma":    query.Fold(d.Idioma),
		"isbn":      NormalizeISBN(d.ISBN),
		"sinopsis":  query.Fold(d.Sinopsis),
		"criticas":  query.Fold(d.Criticas),
		"anio":      d.Anio,
	}
}
