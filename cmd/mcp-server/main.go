package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/floodwatch/internal/config"
	"github.com/patrickwarner/floodwatch/internal/db"
	"github.com/patrickwarner/floodwatch/internal/models"
)

type ListReportsInput struct {
	Status string `json:"status,omitempty"` // ACTIVE or RESOLVED
}

// ReportSummary is the tool-facing view of a report.
type ReportSummary struct {
	ID          string             `json:"id"`
	Location    string             `json:"location"`
	Coordinates models.Coordinates `json:"coordinates"`
	WaterLevel  float64            `json:"water_level"`
	Description string             `json:"description"`
	Status      string             `json:"status"`
	ImageURL    string             `json:"image_url,omitempty"`
	Reporter    string             `json:"reporter,omitempty"`
	CreatedAt   string             `json:"created_at"`
}

type ListReportsOutput struct {
	Reports []ReportSummary `json:"reports"`
	Total   int             `json:"total"`
}

type CountUsersInput struct{}

type CountUsersOutput struct {
	Users int64 `json:"users"`
}

// ReportTools serves read-only report queries to MCP clients.
type ReportTools struct {
	reports db.ReportStore
	logger  *zap.Logger
}

// ListReports implements the list_reports tool
func (s *ReportTools) ListReports(ctx context.Context, req *mcp.CallToolRequest, input ListReportsInput) (*mcp.CallToolResult, ListReportsOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if input.Status != "" && !models.Status(input.Status).Valid() {
		return nil, ListReportsOutput{}, fmt.Errorf("status must be ACTIVE or RESOLVED, got %q", input.Status)
	}

	all, err := s.reports.ListAll(ctx)
	if err != nil {
		return nil, ListReportsOutput{}, fmt.Errorf("list reports: %w", err)
	}

	out := ListReportsOutput{Reports: []ReportSummary{}}
	for _, r := range all {
		if input.Status != "" && string(r.Status) != input.Status {
			continue
		}
		sum := ReportSummary{
			ID:          r.ID,
			Location:    r.Location,
			Coordinates: r.Coordinates.Data(),
			WaterLevel:  r.WaterLevel,
			Description: r.Description,
			Status:      string(r.Status),
			CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if r.ImageURL != nil {
			sum.ImageURL = *r.ImageURL
		}
		if r.Owner != nil {
			sum.Reporter = r.Owner.Name
		}
		out.Reports = append(out.Reports, sum)
	}
	out.Total = len(out.Reports)

	s.logger.Info("list_reports", zap.String("status", input.Status), zap.Int("returned", out.Total))
	return nil, out, nil
}

// CountUsers implements the count_users tool
func (s *ReportTools) CountUsers(ctx context.Context, req *mcp.CallToolRequest, _ CountUsersInput) (*mcp.CallToolResult, CountUsersOutput, error) {
	n, err := s.reports.CountUsers(ctx)
	if err != nil {
		return nil, CountUsersOutput{}, fmt.Errorf("count users: %w", err)
	}
	return nil, CountUsersOutput{Users: n}, nil
}

func newMCPServer(tools *ReportTools) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "floodwatch",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_reports",
		Description: "List flood reports, newest first, optionally filtered by status",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"status": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"ACTIVE", "RESOLVED"},
					"description": "Only return reports in this status (optional)",
				},
			},
		},
	}, tools.ListReports)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "count_users",
		Description: "Count registered users",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}, tools.CountUsers)

	return server
}

func main() {
	// stdout carries the MCP stream, so logs go to stderr
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.MessageKey = "msg"

	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("floodwatch-mcp").With(zap.String("service", "floodwatch-mcp"))

	cfg := config.Load()
	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}, false, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close()

	server := newMCPServer(&ReportTools{reports: database.Reports, logger: logger})

	var logBuffer bytes.Buffer
	transport := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    &logBuffer,
	}

	logger.Info("MCP server running via stdio")
	if err := server.Run(ctx, transport); err != nil {
		logger.Error("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}
