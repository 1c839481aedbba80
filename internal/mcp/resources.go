package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/filingintel/internal/engine"
)

// CatalogURI is the resource holding the cue catalog.
const CatalogURI = "filingintel://catalog"

func registerCatalogResource(s *server.MCPServer, e *engine.Engine) {
	resource := mcp.NewResource(
		CatalogURI,
		"Cue Catalog",
		mcp.WithResourceDescription("Flag cues, governance sections, table header cues and exhibit search terms applied by every extraction tool."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		env := e.Catalog(ctx)
		if !env.Success {
			return nil, fmt.Errorf("reading catalog: %s", env.Error.Message)
		}
		data, err := json.MarshalIndent(env.Data, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding catalog: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
