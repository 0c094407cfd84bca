package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/alquilibros/alquilibros-server/internal/store"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/search/libros",
		Summary:     "Search books",
		Description: "Full-text search over titles, authors, categories, ISBNs and descriptions. Accent and case insensitive.",
		Tags:        []string{"Search"},
	}, s.handleSearchBooks)
}

// SearchBooksInput contains the search parameters.
type SearchBooksInput struct {
	Q     string `query:"q" doc:"Search text"`
	Limit int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum results (default 20)"`
}

// SearchBooksOutput wraps the matching books for Huma.
type SearchBooksOutput struct {
	Body []store.Record
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*SearchBooksOutput, error) {
	books, err := s.services.Search.Books(ctx, input.Q, input.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchBooksOutput{Body: books}, nil
}
