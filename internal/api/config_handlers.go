package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerConfigRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getClientConfig",
		Method:      http.MethodGet,
		Path:        "/api/config",
		Summary:     "Client configuration",
		Description: "Public settings front ends need: API base URL, page size, publication year range and upload widget settings",
		Tags:        []string{"Config"},
	}, s.handleGetClientConfig)
}

// UploadConfig holds the public settings of the cover upload widget.
type UploadConfig struct {
	CloudName    string `json:"cloudName" doc:"Upload service cloud name"`
	UploadPreset string `json:"uploadPreset" doc:"Unsigned upload preset"`
}

// ClientConfigResponse is the public client configuration.
type ClientConfigResponse struct {
	APIBaseURL   string       `json:"apiBaseUrl" doc:"Base URL of this API"`
	ItemsPerPage int          `json:"itemsPerPage" doc:"Default page size"`
	YearMin      int          `json:"yearMin" doc:"Earliest accepted publication year"`
	YearMax      int          `json:"yearMax" doc:"Latest accepted publication year"`
	Upload       UploadConfig `json:"upload" doc:"Cover upload settings"`
}

// ClientConfigOutput wraps the client configuration for Huma.
type ClientConfigOutput struct {
	Body ClientConfigResponse
}

func (s *Server) handleGetClientConfig(_ context.Context, _ *struct{}) (*ClientConfigOutput, error) {
	return &ClientConfigOutput{
		Body: ClientConfigResponse{
			APIBaseURL:   s.cfg.Client.APIBaseURL,
			ItemsPerPage: s.cfg.Catalog.PerPage,
			YearMin:      s.cfg.Catalog.YearMin,
			YearMax:      s.cfg.Catalog.YearMax,
			Upload: UploadConfig{
				CloudName:    s.cfg.Client.UploadCloudName,
				UploadPreset: s.cfg.Client.UploadPreset,
			},
		},
	}, nil
}
