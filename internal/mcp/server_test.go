package mcp

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/filingintel/internal/engine"
	"github.com/hurttlocker/filingintel/internal/extract"
	"github.com/hurttlocker/filingintel/internal/fixture"
	"github.com/hurttlocker/filingintel/internal/provider/local"
)

// helper: create a server over an in-memory corpus with a few filings
func setupTestServer(t *testing.T) *server.MCPServer {
	t.Helper()
	st, err := local.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test corpus: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	filings := []local.Filing{
		{ID: "8k-restatement", Form: "8-K", FilingDate: fixture.Date("2025-03-04"), Content: fixture.EightKRestatement},
		{ID: "ex-991", Form: "EX-99.1", FilingDate: fixture.Date("2025-03-04"), Content: fixture.Exhibit},
		{ID: "proxy", Form: "DEF 14A", FilingDate: fixture.Date("2025-03-01"), Content: fixture.Proxy},
	}
	for i := range filings {
		f := filings[i]
		f.Identifier = "123456"
		if _, err := st.Import(context.Background(), &f); err != nil {
			t.Fatalf("importing %s: %v", f.ID, err)
		}
	}

	e := engine.New(st, extract.New(nil), engine.WithClock(func() time.Time { return fixture.Date("2025-03-10") }))
	t.Cleanup(e.Close)
	return NewServer(ServerConfig{Engine: e, Version: "test"})
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	FilingReference *engine.FilingReference `json:"filing_reference"`
}

// rpc sends one JSON-RPC request and returns its result member.
func rpc(t *testing.T, srv *server.MCPServer, method string, params map[string]interface{}) json.RawMessage {
	t.Helper()
	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}))
	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result
}

// callTool invokes a tool and decodes the envelope it answers with.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) (envelope, bool) {
	t.Helper()
	raw := rpc(t, srv, "tools/call", map[string]interface{}{"name": name, "arguments": args})
	var res struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("parsing tool result: %v", err)
	}
	if len(res.Content) == 0 || res.Content[0].Type != "text" {
		t.Fatalf("no text content in %s", string(raw))
	}
	var env envelope
	if err := json.Unmarshal([]byte(res.Content[0].Text), &env); err != nil {
		t.Fatalf("parsing envelope: %v\n%s", err, res.Content[0].Text)
	}
	return env, res.IsError
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestToolsList(t *testing.T) {
	srv := setupTestServer(t)
	raw := rpc(t, srv, "tools/list", map[string]interface{}{})
	var res struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"cue_catalog", "event_window_pack", "exhibit_search", "filing_flags", "governance_table", "proxy_sections"}
	if len(names) != len(want) {
		t.Fatalf("tools = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tool %d = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestFlagsTool(t *testing.T) {
	srv := setupTestServer(t)
	env, isErr := callTool(t, srv, "filing_flags", map[string]interface{}{
		"document_id": "8k-restatement",
		"flags":       []string{"restatement_402"},
		"max_hits":    float64(1),
	})
	if isErr || !env.Success {
		t.Fatalf("unexpected failure: %+v", env.Error)
	}
	var data struct {
		Flags []extract.Flag `json:"flags"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Flags) != 1 || !data.Flags[0].Present || len(data.Flags[0].Evidence) != 1 {
		t.Errorf("flags = %+v", data.Flags)
	}
	if env.FilingReference == nil || env.FilingReference.Form != "8-K" || env.FilingReference.Date != "2025-03-04" {
		t.Errorf("filing reference = %+v", env.FilingReference)
	}
}

func TestSectionsTool(t *testing.T) {
	srv := setupTestServer(t)
	env, isErr := callTool(t, srv, "proxy_sections", map[string]interface{}{
		"identifier":        "123456",
		"summary_only":      false,
		"max_section_chars": float64(300),
	})
	if isErr || !env.Success {
		t.Fatalf("unexpected failure: %+v", env.Error)
	}
	var s extract.SectionSummary
	if err := json.Unmarshal(env.Data, &s); err != nil {
		t.Fatal(err)
	}
	if !s.SectionsPresent["audit"] || s.SectionsPresent["nominating"] {
		t.Errorf("sections_present = %v", s.SectionsPresent)
	}
	for name, text := range s.Excerpts {
		if len(text) > 300 {
			t.Errorf("%s excerpt has %d chars", name, len(text))
		}
	}
}

func TestTableTool(t *testing.T) {
	srv := setupTestServer(t)
	env, _ := callTool(t, srv, "governance_table", map[string]interface{}{
		"identifier": "123456",
		"kind":       "beneficial_owners",
	})
	if !env.Success {
		t.Fatalf("unexpected failure: %+v", env.Error)
	}
	var res extract.TableResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatal(err)
	}
	if res.ParsedRows != 4 || res.ParsedRows+res.SkippedRows != res.DetectedRows {
		t.Errorf("rows: detected %d parsed %d skipped %d", res.DetectedRows, res.ParsedRows, res.SkippedRows)
	}

	env, isErr := callTool(t, srv, "governance_table", map[string]interface{}{"identifier": "123456"})
	if !isErr || env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("missing kind: %+v", env.Error)
	}
}

func TestSearchToolAcceptsCommaList(t *testing.T) {
	srv := setupTestServer(t)
	env, _ := callTool(t, srv, "exhibit_search", map[string]interface{}{
		"document_id": "ex-991",
		"terms":       "restatement, material weakness",
	})
	if !env.Success {
		t.Fatalf("unexpected failure: %+v", env.Error)
	}
	var data struct {
		Hits map[string]extract.KeywordHit `json:"hits"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Hits["restatement"].Count != 3 || data.Hits["material weakness"].Count != 1 {
		t.Errorf("hits = %+v", data.Hits)
	}
}

func TestWindowTool(t *testing.T) {
	srv := setupTestServer(t)
	env, _ := callTool(t, srv, "event_window_pack", map[string]interface{}{
		"identifier":  "123456",
		"event_date":  "2025-03-04",
		"window_days": float64(3),
	})
	if !env.Success {
		t.Fatalf("unexpected failure: %+v", env.Error)
	}
	var pack struct {
		Window struct {
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		} `json:"window"`
		DocumentsConsulted []string `json:"documents_consulted"`
		Partial            bool     `json:"partial"`
	}
	if err := json.Unmarshal(env.Data, &pack); err != nil {
		t.Fatal(err)
	}
	if pack.Window.StartDate != "2025-03-01" || pack.Window.EndDate != "2025-03-07" {
		t.Errorf("window = %+v", pack.Window)
	}
	if len(pack.DocumentsConsulted) != 3 || pack.Partial {
		t.Errorf("consulted %v partial %v", pack.DocumentsConsulted, pack.Partial)
	}
}

func TestOutOfBoundParameters(t *testing.T) {
	srv := setupTestServer(t)
	tests := []struct {
		name string
		tool string
		args map[string]interface{}
	}{
		{"max_hits ceiling", "filing_flags", map[string]interface{}{"identifier": "123456", "max_hits": float64(51)}},
		{"fractional max_hits", "filing_flags", map[string]interface{}{"identifier": "123456", "max_hits": 2.5}},
		{"flags not a list", "filing_flags", map[string]interface{}{"identifier": "123456", "flags": float64(3)}},
		{"section chars floor", "proxy_sections", map[string]interface{}{"identifier": "123456", "max_section_chars": float64(10)}},
		{"summary_only not bool", "proxy_sections", map[string]interface{}{"identifier": "123456", "summary_only": "maybe"}},
		{"window_days ceiling", "event_window_pack", map[string]interface{}{"identifier": "123456", "event_date": "2025-03-04", "window_days": float64(400)}},
		{"nested repetition", "exhibit_search", map[string]interface{}{"document_id": "ex-991", "terms": []string{"re:(a*)*"}}},
		{"context ceiling", "exhibit_search", map[string]interface{}{"document_id": "ex-991", "terms": []string{"x"}, "context_chars": float64(5000)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, isErr := callTool(t, srv, tt.tool, tt.args)
			if !isErr || env.Success || env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("got isError=%v envelope %+v", isErr, env)
			}
		})
	}
}

func TestCatalogToolAndResource(t *testing.T) {
	srv := setupTestServer(t)
	env, _ := callTool(t, srv, "cue_catalog", map[string]interface{}{})
	if !env.Success || len(env.Data) == 0 {
		t.Fatalf("catalog tool failed: %+v", env.Error)
	}

	raw := rpc(t, srv, "resources/read", map[string]interface{}{"uri": CatalogURI})
	var res struct {
		Contents []struct {
			URI  string `json:"uri"`
			Text string `json:"text"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Contents) != 1 || res.Contents[0].URI != CatalogURI {
		t.Fatalf("contents = %+v", res.Contents)
	}
	var def struct {
		Cues []struct {
			Name string `json:"name"`
		} `json:"cues"`
	}
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &def); err != nil {
		t.Fatal(err)
	}
	if len(def.Cues) == 0 {
		t.Error("catalog resource has no cues")
	}
}
