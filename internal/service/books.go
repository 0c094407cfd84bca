package service

import (
	"fmt"
	"log/slog"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/alquilibros/alquilibros-server/internal/domain"
	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/search"
	"github.com/alquilibros/alquilibros-server/internal/store"
	"github.com/alquilibros/alquilibros-server/internal/validation"
)

// Messages of book errors.
const (
	MsgDuplicateISBN = "Ya existe un libro con este ISBN."
	MsgBookRented    = "El libro está en un alquiler activo."
	MsgBookInHistory = "El libro figura en alquileres registrados."
)

// BookHooks maintains the libros collection and keeps the search index in step with it.
type BookHooks struct {
	yearMin int
	yearMax int
	index   *search.Index // optional
	logger  *slog.Logger
}

// NewBookHooks creates the libros hooks. Publication years must fall in [yearMin, yearMax].
func NewBookHooks(yearMin, yearMax int, index *search.Index, logger *slog.Logger) *BookHooks {
	return &BookHooks{yearMin: yearMin, yearMax: yearMax, index: index, logger: logger}
}

// Hooks returns the hook set to register for domain.Libros.
func (h *BookHooks) Hooks() Hooks {
	return Hooks{
		Prepare:      h.prepare,
		BeforeDelete: h.beforeDelete,
		AfterCommit:  h.afterCommit,
	}
}

func (h *BookHooks) prepare(tx store.Tx, c *Change) (store.Record, error) {
	var book domain.Book
	if err := decodeRecord(c.Record, c.Body, &book); err != nil {
		return nil, err
	}

	book.Titulo = strings.TrimSpace(book.Titulo)
	book.Autor = strings.TrimSpace(book.Autor)
	book.ISBN = strings.TrimSpace(book.ISBN)
	book.Sinopsis = htmlToMarkdown(book.Sinopsis)
	book.Criticas = htmlToMarkdown(book.Criticas)

	// Availability belongs to the rental workflow once the book exists.
	if c.Existing == nil {
		if !has(c.Body, "disponible") {
			book.Disponible = true
		}
	} else {
		book.ID = c.Existing.ID()
		book.Disponible, _ = c.Existing["disponible"].(bool)
	}

	if err := validate.Validate(&book); err != nil {
		return nil, err
	}
	if book.AnioPublicacion < h.yearMin || book.AnioPublicacion > h.yearMax {
		return nil, domainerrors.ValidationWithDetails(validation.MsgInvalidData, map[string]string{
			"anioPublicacion": fmt.Sprintf("must be between %d and %d", h.yearMin, h.yearMax),
		})
	}
	if err := checkISBNUnique(tx, &book); err != nil {
		return nil, err
	}

	return encodeEntity(&book)
}

func checkISBNUnique(tx store.Tx, book *domain.Book) error {
	isbn := search.NormalizeISBN(book.ISBN)
	if isbn == "" {
		return nil
	}
	books, err := tx.List(domain.Libros)
	if err != nil {
		return err
	}
	for _, other := range books {
		if other.ID() == book.ID {
			continue
		}
		if s, _ := other["isbn"].(string); search.NormalizeISBN(s) == isbn {
			return domainerrors.DuplicateIdentity(MsgDuplicateISBN)
		}
	}
	return nil
}

// beforeDelete refuses to delete a book listed by any rental.
func (h *BookHooks) beforeDelete(tx store.Tx, rec store.Record) error {
	rentals, err := rentalsWhere(tx, func(r *domain.Rental) bool { return r.HasBook(rec.ID()) })
	if err != nil {
		return err
	}
	return refusal(rentals, MsgBookRented, MsgBookInHistory)
}

func (h *BookHooks) afterCommit(op Op, rec store.Record) {
	if h.index == nil {
		return
	}
	var err error
	if op == OpDelete {
		err = h.index.Delete(rec.ID())
	} else {
		err = h.index.Upsert(rec)
	}
	if err != nil {
		h.logger.Warn("search index update failed", "book_id", rec.ID(), "error", err)
	}
}

// htmlToMarkdown converts text carrying HTML markup to Markdown. Plain text and unconvertible input are
// returned unchanged.
func htmlToMarkdown(s string) string {
	if s == "" || !containsHTML(s) {
		return s
	}
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}

// containsHTML reports whether s has at least one element tag.
func containsHTML(s string) bool {
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			return true
		}
	}
}
