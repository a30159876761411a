package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/contract"
	"github.com/aretw0/contract/pkg/ports"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/aretw0/contract/pkg/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ParseResponse aligns with the HTTP adapter and describes a parsed annotation.
type ParseResponse struct {
	Annotation string      `json:"annotation" jsonschema_description:"The annotation as given"`
	Descriptor schema.Node `json:"descriptor" jsonschema_description:"The parsed type tree"`
}

// Checker defines the operations the MCP server exposes.
type Checker interface {
	Parse(annotation string) (schema.Node, error)
	Check(ctx context.Context, name, annotation string, raw []byte) (service.Result, error)
	Contracts() []service.ContractInfo
	CheckContract(ctx context.Context, name string, req service.ContractCheck) (service.Result, error)
	Violations(ctx context.Context, limit int) ([]ports.Entry, error)
}

// ViolationsResponse lists recorded violations, newest first.
type ViolationsResponse struct {
	Violations []ports.Entry `json:"violations" jsonschema_description:"Recorded violations, newest first"`
}

// Server wraps a Checker and exposes it as an MCP Server.
type Server struct {
	checker   Checker
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(checker Checker) *Server {
	s := &Server{
		checker:   checker,
		mcpServer: server.NewMCPServer("contract-mcp", strings.TrimSpace(contract.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		slog.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// parseOutputSchema describes ParseResponse. schema.Node nests itself, which
// the reflected schemas cannot express without references.
var parseOutputSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "annotation": {"type": "string"},
    "descriptor": {"$ref": "#/$defs/node"}
  },
  "required": ["annotation", "descriptor"],
  "$defs": {
    "node": {
      "type": "object",
      "properties": {
        "kind": {"type": "string", "enum": ["atomic", "list", "mapping", "tuple", "unchecked"]},
        "name": {"type": "string"},
        "go_type": {"type": "string"},
        "sub_types": {"type": "array", "items": {"$ref": "#/$defs/node"}}
      },
      "required": ["kind", "name"]
    }
  }
}`)

func (s *Server) registerTools() {
	// TOOL: parse_annotation
	parseTool := mcp.NewTool("parse_annotation",
		mcp.WithDescription("Parse a type annotation such as List[int] or Dict[str, Tuple[int, str]] into its type tree."),
		mcp.WithString("annotation", mcp.Required(), mcp.Description("The annotation text")),
		mcp.WithRawOutputSchema(parseOutputSchema),
	)
	s.mcpServer.AddTool(parseTool, mcp.NewStructuredToolHandler(s.handleParse))

	// TOOL: check_value
	checkTool := mcp.NewTool("check_value",
		mcp.WithDescription("Check a JSON value against a type annotation and report the first violation."),
		mcp.WithString("annotation", mcp.Required(), mcp.Description("The annotation text")),
		mcp.WithString("value", mcp.Required(), mcp.Description("The value as JSON")),
		mcp.WithString("name", mcp.Description("Name used in the violation message (default: value)")),
		mcp.WithOutputSchema[service.Result](),
	)
	s.mcpServer.AddTool(checkTool, mcp.NewStructuredToolHandler(s.handleCheck))

	// TOOL: check_contract
	contractTool := mcp.NewTool("check_contract",
		mcp.WithDescription("Check arguments and an optional result against a declared contract."),
		mcp.WithString("contract", mcp.Required(), mcp.Description("Contract name")),
		mcp.WithString("args", mcp.Description("JSON array of positional arguments")),
		mcp.WithString("returns", mcp.Description("The result as JSON (optional)")),
		mcp.WithOutputSchema[service.Result](),
	)
	s.mcpServer.AddTool(contractTool, mcp.NewStructuredToolHandler(s.handleCheckContract))

	// TOOL: recent_violations
	violationsTool := mcp.NewTool("recent_violations",
		mcp.WithDescription("List the most recent contract violations recorded by the server."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default: 20)")),
		mcp.WithOutputSchema[ViolationsResponse](),
	)
	s.mcpServer.AddTool(violationsTool, mcp.NewStructuredToolHandler(s.handleViolations))

	// TOOL: list_contracts
	s.mcpServer.AddTool(mcp.NewTool("list_contracts",
		mcp.WithDescription("List the declared contracts."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, err := json.Marshal(s.checker.Contracts())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleParse(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ParseResponse, error) {
	annotation, _ := args["annotation"].(string)

	node, err := s.checker.Parse(annotation)
	if err != nil {
		return ParseResponse{}, fmt.Errorf("parse failed: %w", err)
	}
	return ParseResponse{Annotation: annotation, Descriptor: node}, nil
}

func (s *Server) handleCheck(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (service.Result, error) {
	annotation, _ := args["annotation"].(string)
	value, _ := args["value"].(string)
	name, _ := args["name"].(string)

	res, err := s.checker.Check(ctx, name, annotation, []byte(value))
	if err != nil {
		return service.Result{}, fmt.Errorf("check failed: %w", err)
	}
	return res, nil
}

func (s *Server) handleCheckContract(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (service.Result, error) {
	name, _ := args["contract"].(string)

	var req service.ContractCheck
	if argStr, ok := args["args"].(string); ok && argStr != "" {
		var raw []json.RawMessage
		if err := json.Unmarshal([]byte(argStr), &raw); err != nil {
			return service.Result{}, fmt.Errorf("args must be a JSON array: %w", err)
		}
		for _, r := range raw {
			req.Args = append(req.Args, r)
		}
	}
	if retStr, ok := args["returns"].(string); ok && retStr != "" {
		req.Returns = []byte(retStr)
	}

	res, err := s.checker.CheckContract(ctx, name, req)
	if err != nil {
		return service.Result{}, fmt.Errorf("check failed: %w", err)
	}
	return res, nil
}

func (s *Server) handleViolations(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ViolationsResponse, error) {
	limit := 20
	if n, ok := args["limit"].(float64); ok && n > 0 {
		limit = int(n)
	}

	entries, err := s.checker.Violations(ctx, limit)
	if err != nil {
		return ViolationsResponse{}, fmt.Errorf("list failed: %w", err)
	}
	if entries == nil {
		entries = []ports.Entry{}
	}
	return ViolationsResponse{Violations: entries}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: contract://contracts
	s.mcpServer.AddResource(mcp.NewResource("contract://contracts", "Declared Contracts",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.checker.Contracts())
		if err != nil {
			return nil, fmt.Errorf("failed to list contracts: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "contract://contracts",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
