package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/volley-relay/relay/match"
	"github.com/wricardo/volley-relay/relay/service"
	"github.com/wricardo/volley-relay/transport/websocket"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// Bridged lookups may wait for the scoreboard
			Timeout: 15 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Volleyball Match Relay",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Volleyball Match Relay - MCP Interface

This is a thin client that proxies all requests to the relay's REST API.

The relay connects a scoreboard (the source of truth for a match) with
referee tablets, bench tablets and live displays. It only holds the latest
snapshot the scoreboard synced; lookups it cannot answer are forwarded to the
connected scoreboard.

AVAILABLE TOOLS:
- relay_status: Mode, connection and room counts, uptime
- list_connections: Connected tablets and displays by role and room
- list_matches: Matches open to referee tablets
- get_match: Full snapshot by match id or game number
- validate_pin: Check which match a referee or bench PIN opens`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Server
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "relay_status",
		Description: "Get relay mode, connection and room counts, pending scoreboard requests and uptime",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleStatus)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_connections",
		Description: "List connected referee, bench and display clients with counts by role and room",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConnections)

	// Matches
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_matches",
		Description: "List matches currently open to referee tablets (not final, referee connection enabled)",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListMatches)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_match",
		Description: "Get the full snapshot of a match by id or by game number",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": map[string]interface{}{
					"type":        "string",
					"description": "Match ID (optional if game_number is given)",
				},
				"game_number": map[string]interface{}{
					"type":        "string",
					"description": "Game number from the fixture list (optional)",
				},
			},
		},
	}, c.handleGetMatch)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "validate_pin",
		Description: "Check which match a 6-character PIN opens for a referee or bench tablet",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"pin": map[string]interface{}{
					"type":        "string",
					"description": "6-character PIN",
				},
				"type": map[string]interface{}{
					"type":        "string",
					"description": "PIN type",
					"enum":        []string{"referee", "homeTeam", "awayTeam"},
				},
			},
			Required: []string{"pin", "type"},
		},
	}, c.handleValidatePin)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func stringArg(request mcp.CallToolRequest, name string) string {
	args, _ := request.Params.Arguments.(map[string]interface{})
	switch v := args[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return match.CanonicalID(fmt.Sprint(v))
	}
	return ""
}

// Tool handlers

func (c *Client) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var status service.Status
	if err := c.apiCall(ctx, "GET", "/api/server/status", nil, &status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStatus(&status)), nil
}

func (c *Client) handleListConnections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var report websocket.ConnectionsReport
	if err := c.apiCall(ctx, "GET", "/api/server/connections", nil, &report); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatConnections(&report)), nil
}

func (c *Client) handleListMatches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count   int                    `json:"count"`
		Matches []service.MatchSummary `json:"matches"`
	}

	if err := c.apiCall(ctx, "GET", "/api/match/list", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Open Matches (%d):\n\n", response.Count)
	for _, m := range response.Matches {
		result += formatSummaryLine(&m)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	matchID := stringArg(request, "match_id")
	gameNumber := stringArg(request, "game_number")

	var path string
	switch {
	case matchID != "":
		path = "/api/match/" + url.PathEscape(matchID)
	case gameNumber != "":
		path = "/api/match/game/" + url.PathEscape(gameNumber)
	default:
		return mcp.NewToolResultError("match_id or game_number is required"), nil
	}

	var response struct {
		MatchID string          `json:"matchId"`
		Source  string          `json:"source"`
		Match   json.RawMessage `json:"match"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMatch(response.MatchID, response.Source, response.Match)), nil
}

func (c *Client) handleValidatePin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pin := stringArg(request, "pin")
	pinType := stringArg(request, "type")
	if pin == "" || pinType == "" {
		return mcp.NewToolResultError("pin and type are required"), nil
	}

	var response struct {
		MatchID string          `json:"matchId"`
		PinType string          `json:"pinType"`
		Source  string          `json:"source"`
		Match   json.RawMessage `json:"match"`
	}
	body := map[string]string{"pin": pin, "type": pinType}
	if err := c.apiCall(ctx, "POST", "/api/match/validate-pin", body, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("✓ PIN opens match %s for %s\n", response.MatchID, response.PinType)
	result += formatMatch(response.MatchID, response.Source, response.Match)
	return mcp.NewToolResultText(result), nil
}

// Formatting

func formatStatus(s *service.Status) string {
	result := fmt.Sprintf("Relay status: %s\n", s.Status)
	result += fmt.Sprintf("Mode: %s\n", s.Mode)
	result += fmt.Sprintf("Connections: %d\n", s.Connections)
	result += fmt.Sprintf("Rooms: %d\n", s.Rooms)
	result += fmt.Sprintf("Stored matches: %d\n", s.Matches)
	if s.BridgeEnabled {
		result += fmt.Sprintf("Scoreboard bridge: on (%d pending)\n", s.PendingRequests)
	} else {
		result += "Scoreboard bridge: off\n"
	}
	result += fmt.Sprintf("Uptime: %s\n", s.Uptime)
	return result
}

func formatConnections(r *websocket.ConnectionsReport) string {
	result := fmt.Sprintf("Connected clients (%d, scoreboards excluded):\n", len(r.Clients))
	for _, c := range r.Clients {
		line := fmt.Sprintf("- %s %s", c.ID, c.Role)
		if c.Team != "" {
			line += fmt.Sprintf(" (%s)", c.Team)
		}
		if c.MatchID != "" {
			line += fmt.Sprintf(" in match %s", c.MatchID)
		}
		result += line + fmt.Sprintf(" from %s\n", c.RemoteAddr)
	}

	result += "\nBy role:\n"
	for _, role := range sortedKeys(r.ByRole) {
		result += fmt.Sprintf("- %s: %d\n", role, r.ByRole[role])
	}

	result += "\nRooms:\n"
	for _, id := range sortedKeys(r.Rooms) {
		result += fmt.Sprintf("- match %s: %d clients\n", id, r.Rooms[id])
	}
	return result
}

func formatSummaryLine(m *service.MatchSummary) string {
	line := fmt.Sprintf("- %s", m.MatchID)
	if m.GameNumber != "" {
		line += fmt.Sprintf(" game #%s", m.GameNumber)
	}
	if m.Status != "" {
		line += fmt.Sprintf(" [%s]", m.Status)
	}
	if m.ScheduledAt != "" {
		line += fmt.Sprintf(" at %s", m.ScheduledAt)
	}
	if m.Court != "" {
		line += fmt.Sprintf(" court %s", m.Court)
	}
	return line + "\n"
}

func formatMatch(matchID, source string, data json.RawMessage) string {
	result := fmt.Sprintf("Match: %s (from %s)\n", matchID, source)
	if len(data) == 0 || string(data) == "null" {
		return result + "No match data\n"
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return result + string(data) + "\n"
	}
	return result + pretty.String() + "\n"
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
