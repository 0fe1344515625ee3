package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/mediahub/internal/config"
	"github.com/patrickwarner/mediahub/internal/db"
	"github.com/patrickwarner/mediahub/internal/formats"
	"github.com/patrickwarner/mediahub/internal/migration"
	"github.com/patrickwarner/mediahub/internal/models"
	"github.com/patrickwarner/mediahub/internal/observability"
)

// Tool request/response types
type ClassifyInput struct {
	Dimensions formats.Dimensions `json:"dimensions"`
}

type ClassifyOutput struct {
	Category string            `json:"category"`
	Primary  string            `json:"primary"`
	All      []string          `json:"all"`
	Display  string            `json:"display"`
	Labels   map[string]string `json:"labels"`
}

type ResolveLegacyInput struct {
	Dimensions *string `json:"dimensions,omitempty"`
	Position   string  `json:"position,omitempty"`
}

type ResolveLegacyOutput struct {
	Outcome    string   `json:"outcome"`
	Dimensions []string `json:"dimensions"`
	Category   string   `json:"category,omitempty"`
	Display    string   `json:"display,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

type FormatOptionsOutput struct {
	Groups []formats.OptionGroup `json:"groups"`
}

type PublicationFormatsInput struct {
	PublicationID string `json:"publication_id"`
}

type AdFormat struct {
	Newsletter string   `json:"newsletter"`
	Name       string   `json:"name"`
	Migrated   bool     `json:"migrated"`
	Legacy     string   `json:"legacy_dimensions,omitempty"`
	Dimensions []string `json:"dimensions"`
	Category   string   `json:"category,omitempty"`
	Display    string   `json:"display,omitempty"`
}

type PublicationFormatsOutput struct {
	PublicationID string     `json:"publication_id"`
	Name          string     `json:"name"`
	Ads           []AdFormat `json:"ads"`
}

type PreviewMigrationInput struct{}

type ReviewEntry struct {
	Publication string `json:"publication"`
	Newsletter  string `json:"newsletter"`
	Ad          string `json:"ad"`
	Dimensions  string `json:"dimensions"`
	Reason      string `json:"reason"`
}

type PreviewMigrationOutput struct {
	Publications int            `json:"publications"`
	Ads          int            `json:"ads"`
	ByOutcome    map[string]int `json:"by_outcome"`
	ByCategory   map[string]int `json:"by_category"`
	WouldUpdate  int            `json:"would_update"`
	NeedsReview  []ReviewEntry  `json:"needs_review"`
}

// PublicationReader is the subset of the document store the tools read.
type PublicationReader interface {
	migration.PublicationStore
	GetPublication(ctx context.Context, id string) (*models.Publication, error)
}

// FormatServer holds the dependencies of the MCP tools. pubs may be nil, in
// which case only the store-independent tools are registered.
type FormatServer struct {
	pubs     PublicationReader
	resolver *migration.Resolver
	logger   *zap.Logger
}

// ClassifyDimensions implements the classify_dimensions tool.
func (s *FormatServer) ClassifyDimensions(ctx context.Context, req *mcp.CallToolRequest, input ClassifyInput) (*mcp.CallToolResult, ClassifyOutput, error) {
	primary, ok := formats.Primary(input.Dimensions)
	if !ok {
		return nil, ClassifyOutput{}, formats.ErrNoFormat
	}
	all := formats.All(input.Dimensions)
	labels := make(map[string]string, len(all))
	for _, v := range all {
		labels[v] = formats.Label(v)
	}
	return nil, ClassifyOutput{
		Category: string(formats.Classify(input.Dimensions)),
		Primary:  primary,
		All:      all,
		Display:  formats.DisplayDimensions(input.Dimensions),
		Labels:   labels,
	}, nil
}

// ResolveLegacy implements the resolve_legacy_dimensions tool.
func (s *FormatServer) ResolveLegacy(ctx context.Context, req *mcp.CallToolRequest, input ResolveLegacyInput) (*mcp.CallToolResult, ResolveLegacyOutput, error) {
	res := s.resolver.Resolve(input.Dimensions, input.Position)
	out := ResolveLegacyOutput{
		Outcome:    string(res.Outcome),
		Dimensions: formats.All(res.Dimensions),
		Reason:     res.Reason,
	}
	if out.Dimensions == nil {
		out.Dimensions = []string{}
	}
	if res.Outcome.Applicable() {
		out.Category = string(formats.Classify(res.Dimensions))
		out.Display = formats.DisplayDimensions(res.Dimensions)
	}
	return nil, out, nil
}

// FormatOptions implements the list_format_options tool.
func (s *FormatServer) FormatOptions(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, FormatOptionsOutput, error) {
	return nil, FormatOptionsOutput{Groups: formats.Options()}, nil
}

// PublicationFormats implements the get_publication_formats tool.
func (s *FormatServer) PublicationFormats(ctx context.Context, req *mcp.CallToolRequest, input PublicationFormatsInput) (*mcp.CallToolResult, PublicationFormatsOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pub, err := s.pubs.GetPublication(ctx, input.PublicationID)
	if err != nil {
		return nil, PublicationFormatsOutput{}, fmt.Errorf("get publication %s: %w", input.PublicationID, err)
	}
	out := PublicationFormatsOutput{
		PublicationID: pub.ID.Hex(),
		Name:          pub.Name(),
		Ads:           []AdFormat{},
	}
	for _, nl := range pub.Channels.Newsletters {
		for _, ad := range nl.AdvertisingOpportunities {
			af := AdFormat{Newsletter: nl.Name, Name: ad.Name, Migrated: ad.HasFormat(), Dimensions: []string{}}
			if ad.Dimensions != nil {
				af.Legacy = *ad.Dimensions
			}
			if dims, ok := ad.EffectiveDimensions(); ok {
				af.Dimensions = formats.All(dims)
				af.Category = string(formats.Classify(dims))
				af.Display = formats.DisplayDimensions(dims)
			}
			out.Ads = append(out.Ads, af)
		}
	}
	return nil, out, nil
}

// PreviewMigration implements the preview_migration tool. It always runs in
// dry-run mode.
func (s *FormatServer) PreviewMigration(ctx context.Context, req *mcp.CallToolRequest, _ PreviewMigrationInput) (*mcp.CallToolResult, PreviewMigrationOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	m := migration.NewMigrator(s.pubs, s.logger, observability.NewNoOpRegistry())
	m.Resolver = s.resolver
	report, err := m.Run(ctx, false)
	if err != nil {
		return nil, PreviewMigrationOutput{}, err
	}

	out := PreviewMigrationOutput{
		Publications: report.Publications,
		Ads:          report.Ads,
		ByOutcome:    make(map[string]int, len(report.ByOutcome)),
		ByCategory:   make(map[string]int, len(report.ByCategory)),
		WouldUpdate:  report.Pending(),
		NeedsReview:  []ReviewEntry{},
	}
	for o, n := range report.ByOutcome {
		out.ByOutcome[string(o)] = n
	}
	for c, n := range report.ByCategory {
		out.ByCategory[string(c)] = n
	}
	for _, it := range report.NeedsReview {
		out.NeedsReview = append(out.NeedsReview, ReviewEntry{
			Publication: it.PublicationName,
			Newsletter:  it.NewsletterName,
			Ad:          it.AdName,
			Dimensions:  it.RawValue(),
			Reason:      it.Reason,
		})
	}
	s.logger.Info("migration preview",
		zap.Int("ads", out.Ads),
		zap.Int("would_update", out.WouldUpdate),
		zap.Int("needs_review", len(out.NeedsReview)))
	return nil, out, nil
}

var dimensionsSchema = map[string]interface{}{
	"oneOf": []interface{}{
		map[string]interface{}{"type": "string"},
		map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
	},
	"description": "A pixel size such as 300x250, a label such as full-newsletter, or a list of pixel sizes",
}

// newMCPServer registers the format tools on a new MCP server.
func newMCPServer(s *FormatServer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "mediahub-formats",
		Version: observability.Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_dimensions",
		Description: "Classify ad dimensions into a format category and render them for display",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"dimensions": dimensionsSchema,
			},
			"required": []string{"dimensions"},
		},
	}, s.ClassifyDimensions)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_legacy_dimensions",
		Description: "Show how the newsletter migration would convert a legacy free-text dimensions value",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"dimensions": map[string]interface{}{
					"type":        "string",
					"description": "Legacy dimensions value (omit when the ad has none)",
				},
				"position": map[string]interface{}{
					"type":        "string",
					"description": "Ad position, e.g. dedicated (optional)",
				},
			},
		},
	}, s.ResolveLegacy)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_format_options",
		Description: "List the selectable format values grouped by category",
		InputSchema: map[string]interface{}{"type": "object"},
	}, s.FormatOptions)

	if s.pubs == nil {
		return server
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_publication_formats",
		Description: "List the newsletter ad formats of a publication",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"publication_id": map[string]interface{}{
					"type":        "string",
					"description": "Publication document id (hex)",
				},
			},
			"required": []string{"publication_id"},
		},
	}, s.PublicationFormats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "preview_migration",
		Description: "Dry-run the newsletter format migration and summarise what it would change",
		InputSchema: map[string]interface{}{"type": "object"},
	}, s.PreviewMigration)

	return server
}

func main() {
	// Logs go to stderr to keep stdio free for the protocol
	logger, err := observability.InitCLILogger("mediahub-mcp", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := config.LoadDotEnv(); err != nil {
		logger.Fatal("Failed to load .env", zap.Error(err))
	}
	cfg := config.Load()

	var extra map[string]string
	if cfg.MigrationMappingsFile != "" {
		extra, err = migration.LoadMappings(cfg.MigrationMappingsFile)
		if err != nil {
			logger.Fatal("Failed to load mappings", zap.Error(err))
		}
	}
	formatServer := &FormatServer{resolver: migration.NewResolver(extra), logger: logger}

	mongoStore, err := db.InitMongo(context.Background(), cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, cfg.MongoTimeout)
	if err != nil {
		logger.Warn("MongoDB unavailable, publication tools disabled", zap.Error(err))
	} else {
		defer mongoStore.Close()
		formatServer.pubs = mongoStore
	}

	server := newMCPServer(formatServer)

	// Add logging transport to debug MCP communication
	var logBuffer bytes.Buffer
	loggingTransport := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    &logBuffer,
	}

	logger.Info("MCP Server running via stdio", zap.Bool("publication_tools", formatServer.pubs != nil))

	if err := server.Run(context.Background(), loggingTransport); err != nil {
		logger.Fatal("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}
