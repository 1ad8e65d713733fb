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

	"github.com/wricardo/maze-race/game/lobby"
	"github.com/wricardo/maze-race/game/service"
	"github.com/wricardo/maze-race/game/session"
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
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Maze Race Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Maze Race - Operator MCP Interface

This is a thin client that proxies read-only requests to the REST API server.
Players race through mazes over the WebSocket; these tools let you watch.

AVAILABLE TOOLS:
- list_rooms: Rooms waiting in the lobby
- get_room: Members, phase and settings of one room
- server_stats: Connection, room and race counters
- game_instructions: How rooms and races work`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List rooms that are waiting in the lobby",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get members, phase and settings of a room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"room_id": map[string]any{
					"type":        "string",
					"description": "Six character room code",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleGetRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Get connection, room and race counters",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleServerStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Explain how rooms, readiness and races work",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
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
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Total int                   `json:"total"`
		Rooms []session.RoomListing `json:"rooms"`
	}

	if err := c.apiCall(ctx, "GET", "/api/rooms", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomList(response.Rooms)), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID := strings.TrimSpace(request.GetString("room_id", ""))
	if roomID == "" {
		return mcp.NewToolResultError("room_id is required"), nil
	}

	var snap lobby.Snapshot
	if err := c.apiCall(ctx, "GET", "/api/rooms/"+url.PathEscape(roomID), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats service.Stats
	if err := c.apiCall(ctx, "GET", "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStats(&stats)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `Maze Race - How It Works

ROOMS:
- A player creates a room and becomes its master. The room code is six hex characters.
- Others join by code while the room is in the lobby and has a free seat.
- When the master leaves, the earliest remaining joiner becomes master.
- An empty room is removed.

LOBBY:
- Every player picks a character; two players cannot share one.
- Guests mark themselves ready. The master starts the race.
- When all guests are ready, the race starts on its own after a short grace period.
- With one guest holding out, the grace period lets the master force the start.
- Changing the settings clears everyone's ready flag.

RACE:
- The server generates one maze and sends it with the shared start and end cells.
- A countdown runs before the race begins.
- Positions are relayed to the other racers as players move.
- The first finisher starts a wrap-up timer. Anyone still racing when it expires retires.
- Rankings list finishers in order, retired players last.

REMATCH:
- After the race anyone can ask for a rematch; the room returns to the lobby.`

func formatRoomList(rooms []session.RoomListing) string {
	if len(rooms) == 0 {
		return "No open rooms.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Open Rooms (%d):\n\n", len(rooms))
	for _, r := range rooms {
		fmt.Fprintf(&sb, "- %s (%d/%d players)\n", r.ID, r.PlayerCount, r.MaxPlayers)
	}
	return sb.String()
}

func formatSnapshot(snap *lobby.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Room %s\n", snap.ID)
	fmt.Fprintf(&sb, "Phase: %s\n", snap.Phase)
	fmt.Fprintf(&sb, "Players: %d/%d\n", len(snap.Players), snap.MaxPlayers)
	fmt.Fprintf(&sb, "Settings: %s\n", formatSettings(snap.Settings))
	if snap.ForceStartAvailable {
		sb.WriteString("Force start available\n")
	}
	if snap.PendingStart != "" {
		fmt.Fprintf(&sb, "Pending start: %s\n", snap.PendingStart)
	}

	order := snap.Order
	if len(order) == 0 {
		for id := range snap.Players {
			order = append(order, id)
		}
		sort.Strings(order)
	}

	sb.WriteString("\nMembers:\n")
	for _, id := range order {
		m, ok := snap.Players[id]
		if !ok {
			continue
		}
		var tags []string
		if m.IsMaster {
			tags = append(tags, "master")
		}
		if m.IsReady {
			tags = append(tags, "ready")
		}
		if m.Character != "" {
			tags = append(tags, m.Character)
		}
		fmt.Fprintf(&sb, "- %s", m.Nickname)
		if len(tags) > 0 {
			fmt.Fprintf(&sb, " [%s]", strings.Join(tags, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatSettings(s lobby.Settings) string {
	if s.Mode == lobby.SettingsModeCustom {
		return fmt.Sprintf("custom %dx%d", s.Width, s.Height)
	}
	return fmt.Sprintf("preset %s", s.Preset)
}

func formatStats(stats *service.Stats) string {
	var sb strings.Builder
	sb.WriteString("Server Stats\n")
	fmt.Fprintf(&sb, "Connections: %d\n", stats.Connections)
	fmt.Fprintf(&sb, "Rooms: %d (open %d, racing %d)\n", stats.Rooms, stats.OpenRooms, stats.RacingRooms)
	fmt.Fprintf(&sb, "Rooms created: %d\n", stats.RoomsCreated)
	fmt.Fprintf(&sb, "Races finished: %d\n", stats.RacesFinished)
	if stats.Uptime != "" {
		fmt.Fprintf(&sb, "Uptime: %s\n", stats.Uptime)
	}
	return sb.String()
}
