// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes NexusDrive import and lookup tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mcmassia/nexusdrive/internal/apperr"
	"github.com/mcmassia/nexusdrive/internal/importer"
	"github.com/mcmassia/nexusdrive/internal/index"
	"github.com/mcmassia/nexusdrive/internal/objectservice"
	"github.com/mcmassia/nexusdrive/internal/storage"
)

const formatURI = "nexusdrive://import-format"

// Server wraps the MCP server with NexusDrive tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *objectservice.Service
	assets storage.AssetStore
	tokens importer.TokenGenerator
}

// New creates a new MCP server with all NexusDrive tools registered.
// assets receives blobs added through upload_asset.
func New(svc *objectservice.Service, assets storage.AssetStore) *Server {
	s := &Server{svc: svc, assets: assets, tokens: importer.RandomTokens{}}

	s.mcp = server.NewMCPServer(
		"NexusDrive",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("import_archive",
		mcp.WithDescription("Import a zip archive of Markdown and HTML documents from a path on the server. "+
			"Read the archive format first via get_import_format or the "+formatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path to the .zip archive")),
		mcp.WithBoolean("overwrite", mcp.Description("Import documents whose titles already exist")),
	), s.importArchive)

	s.mcp.AddTool(mcp.NewTool("revert_import",
		mcp.WithDescription("Undo the most recent import: removes its objects, assets and the types it created."),
	), s.revertImport)

	s.mcp.AddTool(mcp.NewTool("get_import_manifest",
		mcp.WithDescription("Show what the most recent import created."),
	), s.getManifest)

	s.mcp.AddTool(mcp.NewTool("search_objects",
		mcp.WithDescription("Full-text search through imported object titles and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchObjects)

	s.mcp.AddTool(mcp.NewTool("read_object",
		mcp.WithDescription("Read an imported object: content, properties, tags, links and backlinks."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Object id")),
	), s.readObject)

	s.mcp.AddTool(mcp.NewTool("list_objects",
		mcp.WithDescription("List imported objects, optionally filtered by type or tag."),
		mcp.WithString("type", mcp.Description("Only objects of this type")),
		mcp.WithString("tag", mcp.Description("Only objects with this tag")),
	), s.listObjects)

	s.mcp.AddTool(mcp.NewTool("list_schemas",
		mcp.WithDescription("List every type schema with its color and property definitions."),
	), s.listSchemas)

	s.mcp.AddTool(mcp.NewTool("get_import_format",
		mcp.WithDescription("Returns the archive format contract understood by import_archive."),
	), s.getImportFormat)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Store an image or PDF from an http(s) URL or data: URI and return an asset:// reference."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or base64 data: URI")),
		mcp.WithString("filename", mcp.Description("Optional file name used to derive the stored name")),
	), s.uploadAsset)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Import Archive Format",
			mcp.WithResourceDescription("Layout and conventions of archives accepted by import_archive."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) importArchive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot open archive: %v", err)), nil
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.svc.Import(ctx, f, info.Size(), req.GetBool("overwrite", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) revertImport(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Revert(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrNoManifest) {
			return mcp.NewToolResultError("nothing to revert: no import manifest"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) getManifest(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := s.svc.Manifest(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m), nil
}

func (s *Server) searchObjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no results"), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readObject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	obj, err := s.svc.GetObject(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(obj), nil
}

func (s *Server) listObjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListObjects(ctx, index.ListFilter{
		Type:  req.GetString("type", ""),
		Tag:   req.GetString("tag", ""),
		Limit: 200,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"objects": items, "total": total}), nil
}

func (s *Server) listSchemas(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schemas, err := s.svc.ListSchemas(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(schemas), nil
}

func (s *Server) getImportFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ImportFormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ImportFormatContract,
		},
	}, nil
}
