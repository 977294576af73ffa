package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajranjith/vndk-depcheck/internal/mcpio"
)

const mcpProtocolVersion = "2024-11-05"

// MCP Initialize result
type initializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      serverInfo             `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type toolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (a *app) newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol server",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start MCP server (JSON-RPC 2.0 over stdio)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.serveMCP(cmd.InOrStdin(), cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "selftest",
			Short: "Run MCP handshake self-test",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.mcpSelftest(cmd.OutOrStdout())
			},
		},
	)
	return cmd
}

// serveMCP handles requests until in is exhausted.
func (a *app) serveMCP(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	for {
		req, err := mcpio.ReadRequest(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			var rpcErr *mcpio.RPCError
			if errors.As(err, &rpcErr) {
				if err := mcpio.WriteError(out, nil, rpcErr); err != nil {
					return fmt.Errorf("MCP write failed: %w", err)
				}
				continue
			}
			return fmt.Errorf("MCP read failed: %w", err)
		}
		if err := a.handleRequest(out, req); err != nil {
			return fmt.Errorf("MCP write failed: %w", err)
		}
	}
}

func (a *app) handleRequest(out io.Writer, req *mcpio.Request) error {
	switch req.Method {
	case "initialize":
		return mcpio.WriteResult(out, req.ID, initializeResult{
			ProtocolVersion: mcpProtocolVersion,
			Capabilities: map[string]interface{}{
				"tools": map[string]interface{}{"listChanged": false},
			},
			ServerInfo: serverInfo{Name: "vndkdep", Version: Version},
		})

	case "initialized", "notifications/initialized":
		return nil

	case "tools/list":
		return mcpio.WriteResult(out, req.ID, map[string]interface{}{"tools": mcpTools()})

	case "tools/call":
		var params toolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return mcpio.WriteError(out, req.ID, &mcpio.RPCError{Code: mcpio.CodeInvalidParams, Message: "Invalid params", Data: err.Error()})
		}
		switch params.Name {
		case "check_partition":
			mirror, _ := params.Arguments["mirrorRoot"].(string)
			return mcpio.WriteResult(out, req.ID, a.mcpCheckPartition(mirror))
		case "get_report":
			return mcpio.WriteResult(out, req.ID, a.mcpGetReport())
		default:
			return mcpio.WriteError(out, req.ID, &mcpio.RPCError{
				Code:    mcpio.CodeMethodNotFound,
				Message: "Method not found",
				Data:    fmt.Sprintf("Unknown tool: %s", params.Name),
			})
		}

	case "ping":
		return mcpio.WriteResult(out, req.ID, map[string]interface{}{})

	default:
		if req.IsNotification() {
			return nil
		}
		return mcpio.WriteError(out, req.ID, &mcpio.RPCError{
			Code:    mcpio.CodeMethodNotFound,
			Message: "Method not found",
			Data:    fmt.Sprintf("Unknown method: %s", req.Method),
		})
	}
}

func mcpTools() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"name":        "check_partition",
			"description": "Run the VNDK dependency check on the mirrored vendor and odm partitions",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"mirrorRoot": map[string]interface{}{
						"type":        "string",
						"description": "Local copy of the device file system (defaults to the configured mirror)",
					},
				},
			},
		},
		{
			"name":        "get_report",
			"description": "Return the last report.json summary and violations",
			"inputSchema": map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

func textContent(text string, isError bool) map[string]interface{} {
	return map[string]interface{}{
		"content": []map[string]interface{}{{"type": "text", "text": text}},
		"isError": isError,
	}
}

func (a *app) mcpCheckPartition(mirrorRoot string) map[string]interface{} {
	cfg := a.cfg
	if mirrorRoot != "" {
		cfg.Paths.MirrorRoot = mirrorRoot
	}
	rep, err := runCheck(cfg, a.log)
	if err == nil {
		err = writeOutputs(cfg, rep)
	}
	if err != nil {
		return textContent(err.Error(), true)
	}
	return reportContent(rep)
}

func (a *app) mcpGetReport() map[string]interface{} {
	data, err := os.ReadFile(a.cfg.Reports.JSON.Path)
	if err != nil {
		return textContent("no report yet; call check_partition first", true)
	}
	var rep checkReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return textContent(fmt.Sprintf("invalid report.json: %v", err), true)
	}
	return reportContent(&rep)
}

func reportContent(rep *checkReport) map[string]interface{} {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Dependency check: %s (total number of errors: %d)\n", rep.Status, rep.ErrorCount)
	for _, e := range rep.ReadErrors {
		fmt.Fprintf(&b, "read error: %s: %s\n", e.TargetPath, e.Message)
	}
	for _, v := range rep.Violations {
		fmt.Fprintf(&b, "%s: %s\n", v.Scope, v)
	}
	for _, v := range rep.Waived {
		fmt.Fprintf(&b, "ignored %s: %s\n", v.Scope, v)
	}
	res := textContent(b.String(), false)
	res["structuredContent"] = map[string]interface{}{
		"status":     rep.Status,
		"errorCount": rep.ErrorCount,
		"violations": rep.Violations,
		"waived":     rep.Waived,
		"readErrors": rep.ReadErrors,
	}
	return res
}

// mcpSelftest runs an initialize and tools/list exchange through the
// server in memory.
func (a *app) mcpSelftest(out io.Writer) error {
	fmt.Fprintln(out, "vndkdep MCP Self-Test")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintf(out, "[OK] Version: %s\n", Version)
	if a.cfgPath != "" {
		fmt.Fprintf(out, "[OK] Config loaded: %s\n", a.cfgPath)
	} else {
		fmt.Fprintln(out, "[INFO] Using default config")
	}

	var in bytes.Buffer
	for i, method := range []string{"initialize", "tools/list"} {
		req, _ := json.Marshal(mcpio.Request{JSONRPC: "2.0", ID: i + 1, Method: method})
		if err := mcpio.WriteMessage(&in, req); err != nil {
			return err
		}
	}
	var resp bytes.Buffer
	if err := a.serveMCP(&in, &resp); err != nil {
		fmt.Fprintf(out, "[FAIL] Serve: %v\n", err)
		return errFailed
	}

	reader := bufio.NewReader(&resp)
	for _, check := range []string{"initialize", "tools/list"} {
		msg, err := mcpio.ReadMessage(reader)
		if err != nil {
			fmt.Fprintf(out, "[FAIL] %s: %v\n", check, err)
			return errFailed
		}
		var r mcpio.Response
		if err := json.Unmarshal(msg, &r); err != nil || r.Error != nil {
			fmt.Fprintf(out, "[FAIL] %s: %s\n", check, msg)
			return errFailed
		}
		fmt.Fprintf(out, "[OK] %s\n", check)
	}
	fmt.Fprintln(out, "All tests passed!")
	return nil
}
