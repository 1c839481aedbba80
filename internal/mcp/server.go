// Package mcp provides a Model Context Protocol server for filingintel.
//
// It exposes every engine operation (flags, proxy sections, governance
// tables, exhibit search, event window packs and the cue catalog) as MCP
// tools, and the cue catalog as an MCP resource. Every tool answers with the
// engine's JSON envelope; failures set the result's isError flag as well.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hurttlocker/filingintel/internal/compact"
	"github.com/hurttlocker/filingintel/internal/cue"
	"github.com/hurttlocker/filingintel/internal/engine"
	"github.com/hurttlocker/filingintel/internal/errcode"
	"github.com/hurttlocker/filingintel/internal/extract"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Engine  *engine.Engine
	Version string // version string for MCP server info
	Logger  *zap.Logger
}

// NewServer creates a configured MCP server with all filingintel tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := server.NewMCPServer(
		"filingintel",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
		server.WithRecovery(),
	)

	// Register tools
	registerFlagsTool(s, cfg.Engine)
	registerSectionsTool(s, cfg.Engine)
	registerTableTool(s, cfg.Engine)
	registerSearchTool(s, cfg.Engine)
	registerWindowTool(s, cfg.Engine)
	registerCatalogTool(s, cfg.Engine)

	// Register resources
	registerCatalogResource(s, cfg.Engine)

	logger.Debug("mcp: server ready", zap.String("version", ver))
	return s
}

// ServeStdio serves s over r and w until ctx ends or the client hangs up.
func ServeStdio(ctx context.Context, s *server.MCPServer, r io.Reader, w io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, r, w)
}

// --- Tools ---

func targetOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("identifier",
			mcp.Description("Issuer identifier, e.g. a CIK. Required unless document_id is given."),
		),
		mcp.WithString("document_id",
			mcp.Description("Explicit document id or accession number. Overrides form resolution."),
		),
		mcp.WithString("form",
			mcp.Description("Form type to resolve instead of the tool's default, e.g. '10-K'."),
		),
	}
}

func limitOptions(names ...string) []mcp.ToolOption {
	desc := map[string]string{
		"summary_only":      "Return presence and locators only, no section text (default: true)",
		"max_section_chars": fmt.Sprintf("Maximum characters per section excerpt (default: %d, range %d-%d)", compact.DefaultMaxSectionChars, compact.MinMaxSectionChars, compact.MaxMaxSectionChars),
		"max_hits":          fmt.Sprintf("Maximum evidence snippets or samples per item (default: %d, max: %d)", compact.DefaultMaxHits, compact.MaxMaxHits),
		"context_chars":     fmt.Sprintf("Characters of context on each side of a hit (default: %d, max: %d)", compact.DefaultContextChars, compact.MaxContextChars),
		"window_days":       fmt.Sprintf("Days on each side of the event date (default: %d, max: %d)", compact.DefaultWindowDays, compact.MaxWindowDays),
	}
	var out []mcp.ToolOption
	for _, n := range names {
		if n == "summary_only" {
			out = append(out, mcp.WithBoolean(n, mcp.Description(desc[n])))
			continue
		}
		out = append(out, mcp.WithNumber(n, mcp.Description(desc[n])))
	}
	return out
}

func newTool(name, description string, opts ...[]mcp.ToolOption) mcp.Tool {
	all := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	}
	for _, o := range opts {
		all = append(all, o...)
	}
	return mcp.NewTool(name, all...)
}

func stringArray(name, description string) mcp.ToolOption {
	return mcp.WithArray(name, mcp.Description(description), mcp.Items(map[string]any{"type": "string"}))
}

func registerFlagsTool(s *server.MCPServer, e *engine.Engine) {
	tool := newTool("filing_flags",
		"Evaluate boolean filing flags (restatement, going concern, material weakness, 8-K items, ...) with short verbatim evidence. For an 8-K also reports its EX-99 press releases. Defaults to the latest 8-K of the last 90 days.",
		targetOptions(),
		[]mcp.ToolOption{stringArray("flags", "Flag names to evaluate (default: all). See cue_catalog.")},
		limitOptions("max_hits"),
	)
	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		r := engine.FlagsRequest{Target: a.target(), Flags: a.list("flags")}
		r.Params = a.params()
		if a.err != nil {
			return invalid(a.err), nil
		}
		return result(e.Flags(ctx, r)), nil
	})
}

func registerSectionsTool(s *server.MCPServer, e *engine.Engine) {
	tool := newTool("proxy_sections",
		"Report which governance sections (audit, compensation, nominating, related party, beneficial ownership, ...) a proxy statement contains. Defaults to the latest DEFM14A/DEF 14A/PREM14A/PRE 14A of the last 400 days; with form 10-K or 10-Q it reports business, risk_factors and mda.",
		targetOptions(),
		[]mcp.ToolOption{stringArray("sections", "Section names (default: the governance sections for proxies, business/risk_factors/mda for 10-K and 10-Q). See cue_catalog.")},
		limitOptions("summary_only", "max_section_chars"),
	)
	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		r := engine.SectionsRequest{Target: a.target(), Sections: a.list("sections")}
		r.Params = a.params()
		if a.err != nil {
			return invalid(a.err), nil
		}
		return result(e.Sections(ctx, r)), nil
	})
}

func registerTableTool(s *server.MCPServer, e *engine.Engine) {
	kinds := make([]string, len(cue.TableKinds))
	for i, k := range cue.TableKinds {
		kinds[i] = string(k)
	}
	tool := newTool("governance_table",
		"Extract a board roster, committee membership matrix or beneficial ownership table from a proxy statement, with detected/parsed/skipped row counts.",
		targetOptions(),
		[]mcp.ToolOption{mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Table kind"),
			mcp.Enum(kinds...),
		)},
		limitOptions(),
	)
	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kind, err := req.RequireString("kind")
		if err != nil {
			return invalid(errcode.Validationf("kind is required")), nil
		}
		a := args(req)
		r := engine.TableRequest{Target: a.target(), Kind: kind}
		if a.err != nil {
			return invalid(a.err), nil
		}
		return result(e.Table(ctx, r)), nil
	})
}

func registerSearchTool(s *server.MCPServer, e *engine.Engine) {
	tool := newTool("exhibit_search",
		fmt.Sprintf("Count keyword hits in one document and return ordered samples with context. Terms are literal phrases unless prefixed with %q; at most %d terms of %d characters.", extract.RegexPrefix, extract.MaxTerms, extract.MaxTermLength),
		targetOptions(),
		[]mcp.ToolOption{
			mcp.WithArray("terms", mcp.Required(), mcp.Description("Search terms"), mcp.Items(map[string]any{"type": "string"})),
		},
		limitOptions("max_hits", "context_chars"),
	)
	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		r := engine.SearchRequest{Target: a.target(), Terms: a.list("terms")}
		r.Params = a.params()
		if a.err != nil {
			return invalid(a.err), nil
		}
		return result(e.Search(ctx, r)), nil
	})
}

func registerWindowTool(s *server.MCPServer, e *engine.Engine) {
	tool := newTool("event_window_pack",
		"Collect every filing of an issuer within window_days of an event date, extract flags, governance sections, ownership and exhibit hits, and merge them into one pack. Failed documents are listed and mark the pack partial.",
		[]mcp.ToolOption{
			mcp.WithString("identifier", mcp.Required(), mcp.Description("Issuer identifier, e.g. a CIK")),
			mcp.WithString("event_date", mcp.Required(), mcp.Description("Event date as YYYY-MM-DD")),
		},
		limitOptions("window_days", "summary_only", "max_section_chars", "max_hits", "context_chars"),
	)
	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		r := engine.WindowRequest{Identifier: a.str("identifier"), EventDate: a.str("event_date")}
		r.Params = a.params()
		if a.err != nil {
			return invalid(a.err), nil
		}
		return result(e.Window(ctx, r)), nil
	})
}

func registerCatalogTool(s *server.MCPServer, e *engine.Engine) {
	tool := newTool("cue_catalog",
		"List the flag cues, governance sections, table kinds and exhibit terms the engine applies.")
	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return result(e.Catalog(ctx)), nil
	})
}

// --- Arguments ---

// arguments reads flat snake_case tool arguments. The first malformed value
// is kept in err and reported as a validation envelope.
type arguments struct {
	m   map[string]any
	err error
}

func args(req mcp.CallToolRequest) *arguments {
	return &arguments{m: req.GetArguments()}
}

func (a *arguments) fail(format string, v ...any) {
	if a.err == nil {
		a.err = errcode.Validationf(format, v...)
	}
}

func (a *arguments) str(name string) string {
	v, ok := a.m[name]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		a.fail("%s must be a string", name)
	}
	return strings.TrimSpace(s)
}

// list accepts a JSON array of strings or one comma-separated string.
func (a *arguments) list(name string) []string {
	v, ok := a.m[name]
	if !ok || v == nil {
		return nil
	}
	var out []string
	switch t := v.(type) {
	case string:
		for _, p := range strings.Split(t, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	case []string:
		out = t
	case []any:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				a.fail("%s must be an array of strings", name)
				return nil
			}
			out = append(out, s)
		}
	default:
		a.fail("%s must be an array of strings", name)
	}
	return out
}

func (a *arguments) num(name string) *int {
	v, ok := a.m[name]
	if !ok || v == nil {
		return nil
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			a.fail("%s must be a number", name)
			return nil
		}
		f = n
	default:
		a.fail("%s must be a number", name)
		return nil
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		a.fail("%s must be an integer", name)
		return nil
	}
	n := int(f)
	return &n
}

func (a *arguments) boolean(name string) *bool {
	v, ok := a.m[name]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case bool:
		return &t
	case string:
		b := strings.EqualFold(t, "true")
		if !b && !strings.EqualFold(t, "false") {
			a.fail("%s must be a boolean", name)
			return nil
		}
		return &b
	}
	a.fail("%s must be a boolean", name)
	return nil
}

func (a *arguments) target() engine.Target {
	return engine.Target{
		Identifier: a.str("identifier"),
		DocumentID: a.str("document_id"),
		Form:       a.str("form"),
	}
}

func (a *arguments) params() compact.Params {
	return compact.Params{
		SummaryOnly:     a.boolean("summary_only"),
		MaxSectionChars: a.num("max_section_chars"),
		MaxHits:         a.num("max_hits"),
		ContextChars:    a.num("context_chars"),
		WindowDays:      a.num("window_days"),
	}
}

// --- Results ---

func result(env engine.Envelope) *mcp.CallToolResult {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err))
	}
	res := mcp.NewToolResultText(string(data))
	res.IsError = !env.Success
	return res
}

func invalid(err error) *mcp.CallToolResult {
	ce := errcode.From(err)
	return result(engine.Envelope{Error: &engine.ErrorBody{Code: ce.Code, Message: ce.Message}})
}
