package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mcmassia/nexusdrive/internal/importer"
	"github.com/mcmassia/nexusdrive/internal/objectservice"
	"github.com/mcmassia/nexusdrive/internal/storage"
	"github.com/mcmassia/nexusdrive/internal/testutil"
)

// pngHeader is enough for http.DetectContentType to report image/png.
const pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

func testServer(t *testing.T) (*Server, storage.AssetStore) {
	t.Helper()
	db := testutil.TestDB(t)
	_, assets := testutil.TestAssets(t)
	engine := importer.New(
		importer.WithObjectStore(db),
		importer.WithAssetStore(assets),
		importer.WithSchemaStore(db),
		importer.WithManifestStore(db),
	)
	return New(objectservice.NewService(db, assets, engine), assets), assets
}

func writeArchive(t *testing.T, files ...testutil.File) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "vault.zip")
	if err := os.WriteFile(p, testutil.ZipBytes(t, files...), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are invoked directly.
	var (
		result *mcp.CallToolResult
		err    error
	)
	switch name {
	case "import_archive":
		result, err = srv.importArchive(ctx, req)
	case "revert_import":
		result, err = srv.revertImport(ctx, req)
	case "get_import_manifest":
		result, err = srv.getManifest(ctx, req)
	case "search_objects":
		result, err = srv.searchObjects(ctx, req)
	case "read_object":
		result, err = srv.readObject(ctx, req)
	case "list_objects":
		result, err = srv.listObjects(ctx, req)
	case "list_schemas":
		result, err = srv.listSchemas(ctx, req)
	case "get_import_format":
		result, err = srv.getImportFormat(ctx, req)
	case "upload_asset":
		result, err = srv.uploadAsset(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func importSample(t *testing.T, srv *Server) importer.Result {
	t.Helper()
	p := writeArchive(t,
		testutil.File{Path: "Recipes/Pancakes.md", Body: "---\ntype: recipe\n---\nMix flour with [[Eggs]]."},
		testutil.File{Path: "Recipes/Eggs.md", Body: "Fresh eggs."},
	)
	r := callTool(t, srv, "import_archive", map[string]any{"path": p})
	if r.IsError {
		t.Fatalf("import failed: %s", resultText(r))
	}
	var res importer.Result
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return res
}

func TestImportArchive(t *testing.T) {
	srv, _ := testServer(t)
	res := importSample(t, srv)
	if res.Processed != 2 {
		t.Errorf("processed = %d, want 2", res.Processed)
	}

	r := callTool(t, srv, "list_schemas", map[string]any{})
	if !strings.Contains(resultText(r), `"type": "recipe"`) {
		t.Errorf("schemas = %s", resultText(r))
	}
}

func TestImportArchive_MissingFile(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "import_archive", map[string]any{"path": "/nope/vault.zip"})
	if !r.IsError {
		t.Error("expected error for missing archive")
	}
}

func TestSearchAndReadObject(t *testing.T) {
	srv, _ := testServer(t)
	importSample(t, srv)

	r := callTool(t, srv, "search_objects", map[string]any{"query": "flour"})
	var hits []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &hits); err != nil || len(hits) != 1 {
		t.Fatalf("search = %s", resultText(r))
	}
	if hits[0].Title != "Pancakes" {
		t.Errorf("hit = %q, want Pancakes", hits[0].Title)
	}

	r = callTool(t, srv, "read_object", map[string]any{"id": hits[0].ID})
	text := resultText(r)
	if !strings.Contains(text, "object://") || !strings.Contains(text, `"type": "recipe"`) {
		t.Errorf("read = %s", text)
	}
}

func TestReadObjectMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_object", map[string]any{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing object")
	}
}

func TestListObjects_Filter(t *testing.T) {
	srv, _ := testServer(t)
	importSample(t, srv)

	r := callTool(t, srv, "list_objects", map[string]any{"type": "recipe"})
	if !strings.Contains(resultText(r), `"total": 1`) {
		t.Errorf("list = %s", resultText(r))
	}
}

func TestRevertImport(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "revert_import", map[string]any{})
	if !r.IsError {
		t.Error("revert without import should fail")
	}

	importSample(t, srv)
	r = callTool(t, srv, "get_import_manifest", map[string]any{})
	if r.IsError {
		t.Fatalf("manifest: %s", resultText(r))
	}

	r = callTool(t, srv, "revert_import", map[string]any{})
	if r.IsError || !strings.Contains(resultText(r), `"objects": 2`) {
		t.Errorf("revert = %s", resultText(r))
	}
	r = callTool(t, srv, "search_objects", map[string]any{"query": "flour"})
	if resultText(r) != "no results" {
		t.Errorf("search after revert = %s", resultText(r))
	}
}

func TestGetImportFormat(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_import_format", map[string]any{})
	if resultText(r) != ImportFormatContract {
		t.Error("format contract mismatch")
	}
}

func TestUploadAsset_DataURI(t *testing.T) {
	srv, assets := testServer(t)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(pngHeader))

	r := callTool(t, srv, "upload_asset", map[string]any{"url": uri, "filename": "my chart.png"})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}
	var res uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Name, "my_chart_") || !strings.HasSuffix(res.Name, ".png") {
		t.Errorf("name = %q", res.Name)
	}
	if res.Reference != "asset://"+res.Name {
		t.Errorf("reference = %q", res.Reference)
	}
	data, err := assets.Get(context.Background(), res.Name)
	if err != nil || string(data) != pngHeader {
		t.Errorf("stored blob = %q, %v", data, err)
	}
}

func TestUploadAsset_Rejections(t *testing.T) {
	srv, _ := testServer(t)
	png := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(pngHeader))
	text := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("plain text"))
	tests := map[string]map[string]any{
		"bad extension":  {"url": png, "filename": "x.exe"},
		"magic mismatch": {"url": text},
		"not base64":     {"url": "data:image/png,raw"},
		"bad scheme":     {"url": "ftp://example.com/x.png"},
		"loopback":       {"url": "http://127.0.0.1/x.png"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if r := callTool(t, srv, "upload_asset", args); !r.IsError {
				t.Errorf("expected error, got %s", resultText(r))
			}
		})
	}
}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		url, ext, want string
	}{
		{"https://example.com/img/chart.png?x=1", "", "chart.png"},
		{"https://example.com/", ".jpg", "asset.jpg"},
		{"data:image/png;base64,AAAA", ".png", "asset.png"},
		{"https://example.com/download", "", "asset.bin"},
	}
	for _, tt := range tests {
		if got := filenameFromURL(tt.url, tt.ext); got != tt.want {
			t.Errorf("filenameFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDecodeDataURI(t *testing.T) {
	data, ext, err := decodeDataURI("data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte("<svg/>")))
	if err != nil {
		t.Fatal(err)
	}
	if ext != ".svg" || string(data) != "<svg/>" {
		t.Errorf("got %q %q", data, ext)
	}
	if _, _, err := decodeDataURI("data:text/plain;base64,aGk="); err == nil {
		t.Error("expected error for unsupported MIME type")
	}
	if _, _, err := decodeDataURI("data:image/png;base64"); err == nil {
		t.Error("expected error for missing comma")
	}
}
