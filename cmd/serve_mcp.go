package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"bddhost/bdd"
	"bddhost/internal/coverage"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// mcpServer wraps the Driver API (spec.md §6) and exposes it as MCP
// tools over stdio, mirroring the teacher's cmd/test.go --mcp-server
// mode (internal/agent.TestMCPServer): a thin transport bridge whose
// handlers forward straight into the already-tested bdd façade rather
// than reimplementing any of its logic.
type mcpServer struct {
	inner *server.MCPServer
}

func newMCPServer() *mcpServer {
	s := &mcpServer{
		inner: server.NewMCPServer(
			"bddhost",
			GetVersion(),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithPromptCapabilities(false),
		),
	}
	s.registerTools()
	return s
}

func (s *mcpServer) Start(ctx context.Context) error {
	return server.ServeStdio(s.inner)
}

func (s *mcpServer) registerTools() {
	s.inner.AddTool(mcp.NewTool("discover",
		mcp.WithDescription("Discover test files under a directory without running them"),
		mcp.WithString("dir", mcp.Description("Root directory to discover under (no default: an empty value is an IO error)")),
		mcp.WithString("pattern", mcp.Description("Glob pattern for test files (default: configured discovery default)")),
	), s.handleDiscover)

	s.inner.AddTool(mcp.NewTool("run_file",
		mcp.WithDescription("Run every case declared by a single previously-discovered test file"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the test file to run")),
	), s.handleRunFile)

	s.inner.AddTool(mcp.NewTool("run_discovered",
		mcp.WithDescription("Discover and run every registered test file under a directory"),
		mcp.WithString("dir", mcp.Description("Root directory to discover under (no default: an empty value is an IO error)")),
		mcp.WithString("pattern", mcp.Description("Glob pattern for test files (default: configured discovery default)")),
	), s.handleRunDiscovered)

	s.inner.AddTool(mcp.NewTool("reset",
		mcp.WithDescription("Clear the declared test tree, filters, and focus mode between files"),
	), s.handleReset)

	s.inner.AddTool(mcp.NewTool("coverage_init",
		mcp.WithDescription("Initialize the coverage engine, optionally loading a prior stats file"),
		mcp.WithString("stats_file", mcp.Description("Path to a coverage stats file to load, if any")),
	), s.handleCoverageInit)

	s.inner.AddTool(mcp.NewTool("coverage_start",
		mcp.WithDescription("Resume coverage recording"),
	), s.handleCoverageStart)

	s.inner.AddTool(mcp.NewTool("coverage_stop",
		mcp.WithDescription("Pause coverage recording"),
	), s.handleCoverageStop)

	s.inner.AddTool(mcp.NewTool("coverage_shutdown",
		mcp.WithDescription("Flush and uninstall the coverage engine"),
	), s.handleCoverageShutdown)

	s.inner.AddTool(mcp.NewTool("coverage_save",
		mcp.WithDescription("Save coverage stats to a file"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Destination path")),
	), s.handleCoverageSave)

	s.inner.AddTool(mcp.NewTool("coverage_load",
		mcp.WithDescription("Load and merge coverage stats from a file"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Source path")),
	), s.handleCoverageLoad)

	s.inner.AddTool(mcp.NewTool("coverage_reset",
		mcp.WithDescription("Discard all in-memory coverage data"),
	), s.handleCoverageReset)

	s.inner.AddTool(mcp.NewTool("coverage_get_data",
		mcp.WithDescription("Retrieve the current three-state coverage data, per file and line"),
	), s.handleCoverageGetData)

	s.inner.AddTool(mcp.NewTool("config_get",
		mcp.WithDescription("Read a configuration value by dotted path"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Dotted configuration key")),
	), s.handleConfigGet)

	s.inner.AddTool(mcp.NewTool("config_set",
		mcp.WithDescription("Write a configuration value by dotted path"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Dotted configuration key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Value to store, as a JSON-encoded scalar")),
	), s.handleConfigSet)

	s.inner.AddTool(mcp.NewTool("config_load_from_file",
		mcp.WithDescription("Replace live configuration values from a YAML file"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Source path")),
	), s.handleConfigLoadFromFile)

	s.inner.AddTool(mcp.NewTool("config_save_to_file",
		mcp.WithDescription("Serialize and write configuration to a YAML file"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Destination path")),
	), s.handleConfigSaveToFile)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *mcpServer) handleDiscover(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	dir, _ := args["dir"].(string)
	pattern, _ := args["pattern"].(string)

	files, err := bdd.Discover(dir, pattern)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"files": files})
}

func (s *mcpServer) handleRunFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, rerr := request.RequireString("path")
	if rerr != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}

	result, err := bdd.RunFile(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *mcpServer) handleRunDiscovered(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	dir, _ := args["dir"].(string)
	pattern, _ := args["pattern"].(string)

	success, err := bdd.RunDiscovered(dir, pattern)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"success": success})
}

func (s *mcpServer) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bdd.Reset()
	return jsonResult(map[string]any{"ok": true})
}

func (s *mcpServer) handleCoverageInit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	statsFile, _ := args["stats_file"].(string)

	if err := bdd.Coverage.Init(coverage.Config{StatsFile: statsFile}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"ok": true})
}

func (s *mcpServer) handleCoverageStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bdd.Coverage.Start()
	return jsonResult(map[string]any{"ok": true})
}

func (s *mcpServer) handleCoverageStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bdd.Coverage.Stop()
	return jsonResult(map[string]any{"ok": true})
}

func (s *mcpServer) handleCoverageShutdown(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := bdd.Coverage.Shutdown(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"ok": true})
}

func (s *mcpServer) handleCoverageSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, rerr := request.RequireString("path")
	if rerr != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}
	if err := bdd.Coverage.Save(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"ok": true})
}

func (s *mcpServer) handleCoverageLoad(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, rerr := request.RequireString("path")
	if rerr != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}
	if err := bdd.Coverage.Load(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"ok": true})
}

func (s *mcpServer) handleCoverageReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bdd.Coverage.Reset()
	return jsonResult(map[string]any{"ok": true})
}

func (s *mcpServer) handleCoverageGetData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(bdd.Coverage.GetData())
}

func (s *mcpServer) handleConfigGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, rerr := request.RequireString("path")
	if rerr != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}
	value, ok := bdd.Config.Get(path)
	return jsonResult(map[string]any{"path": path, "value": value, "found": ok})
}

func (s *mcpServer) handleConfigSet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, rerr := request.RequireString("path")
	if rerr != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}
	raw, rerr := request.RequireString("value")
	if rerr != nil {
		return mcp.NewToolResultError("value parameter is required"), nil
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}

	if err := bdd.Config.Set(path, value); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"ok": true})
}

func (s *mcpServer) handleConfigLoadFromFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, rerr := request.RequireString("path")
	if rerr != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}
	if err := bdd.Config.LoadFromFile(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"ok": true})
}

func (s *mcpServer) handleConfigSaveToFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, rerr := request.RequireString("path")
	if rerr != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}
	if err := bdd.Config.SaveToFile(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"ok": true})
}

func newServeMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-mcp",
		Short: "Expose the Driver API as MCP tools over stdio",
		Long: `serve-mcp runs bddhost as an MCP server using stdio transport, exposing
discover/run_file/run_discovered/reset, the coverage engine, and configuration
as MCP tools, for integration with AI assistants and editors that speak MCP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newMCPServer().Start(cmd.Context())
		},
	}
}
