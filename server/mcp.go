package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"factharvest/catalog"
	"factharvest/history"
	"factharvest/record"
)

func (s *Server) registerTools() {
	s.registerCatalogTool()
	s.registerCountryTool()
	s.registerTrendTool()
}

func filterBand(fields []catalog.Entry, band string) []catalog.Entry {
	out := fields[:0:0]
	for _, e := range fields {
		if e.Band == band {
			out = append(out, e)
		}
	}
	return out
}

func filterCategory(fields []catalog.Entry, category string) []catalog.Entry {
	out := fields[:0:0]
	for _, e := range fields {
		if strings.EqualFold(e.Key.Category, category) {
			out = append(out, e)
		}
	}
	return out
}

// catalogField is the tool-facing projection of a catalog entry.
type catalogField struct {
	DatabaseID       int     `json:"database_id"`
	Category         string  `json:"category,omitempty"`
	DisplayName      string  `json:"display_name"`
	CountriesPresent int     `json:"countries_present"`
	CoverageRatio    float64 `json:"coverage_ratio"`
	Band             string  `json:"band"`
}

type catalogInput struct {
	Date     string `json:"date,omitempty" jsonschema:"Snapshot date (YYYY-MM-DD); empty means the latest snapshot"`
	Band     string `json:"band,omitempty" jsonschema:"Filter to one coverage band: universal, common, or rare"`
	Category string `json:"category,omitempty" jsonschema:"Filter to one category, e.g. Economy"`
}

type catalogOutput struct {
	SnapshotDate   string         `json:"snapshot_date"`
	TotalCountries int            `json:"total_countries"`
	Fields         []catalogField `json:"fields"`
}

func (s *Server) registerCatalogTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_catalog_fields",
		Description: "List fields in the cross-country catalog with coverage ratios and bands, optionally filtered by band or category",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input catalogInput) (*mcp.CallToolResult, catalogOutput, error) {
		layout, err := s.resolveLayout(input.Date)
		if err != nil {
			return nil, catalogOutput{}, err
		}
		cat, err := s.readCatalog(layout)
		if err != nil {
			return nil, catalogOutput{}, err
		}
		entries := cat.Fields
		if input.Band != "" {
			entries = filterBand(entries, input.Band)
		}
		if input.Category != "" {
			entries = filterCategory(entries, input.Category)
		}
		out := catalogOutput{
			SnapshotDate:   layout.Date,
			TotalCountries: cat.TotalCountries,
			Fields:         make([]catalogField, 0, len(entries)),
		}
		for _, e := range entries {
			out.Fields = append(out.Fields, catalogField{
				DatabaseID:       e.Key.DatabaseID,
				Category:         e.Key.Category,
				DisplayName:      e.DisplayName,
				CountriesPresent: e.CountriesPresent,
				CoverageRatio:    e.CoverageRatio,
				Band:             e.Band,
			})
		}
		return nil, out, nil
	})
}

type countryInput struct {
	CountryID string `json:"country_id" jsonschema:"Country slug, e.g. france"`
	Field     string `json:"field,omitempty" jsonschema:"Return only fields whose name contains this text (case-insensitive)"`
	Date      string `json:"date,omitempty" jsonschema:"Snapshot date (YYYY-MM-DD); empty means the latest snapshot"`
}

// countryField flattens one refined field for tool consumers.
type countryField struct {
	Name        string              `json:"name"`
	Category    string              `json:"category,omitempty"`
	MultiValued bool                `json:"multi_valued"`
	Values      []record.FieldValue `json:"values,omitempty"`
	Value       string              `json:"value,omitempty"`
}

type countryOutput struct {
	CountryID string         `json:"country_id"`
	Name      string         `json:"name"`
	Region    string         `json:"region,omitempty"`
	Fields    []countryField `json:"fields"`
}

func (s *Server) registerCountryTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_country_fields",
		Description: "Look up a country's refined fields by slug, optionally narrowed to fields matching a name substring",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input countryInput) (*mcp.CallToolResult, countryOutput, error) {
		if input.CountryID == "" {
			return nil, countryOutput{}, fmt.Errorf("country_id is required")
		}
		layout, err := s.resolveLayout(input.Date)
		if err != nil {
			return nil, countryOutput{}, err
		}
		rec, err := s.refinedStore(layout).Load(input.CountryID)
		if err != nil {
			return nil, countryOutput{}, err
		}
		out := countryOutput{CountryID: rec.CountryID, Name: rec.Name, Region: rec.Region}
		for i := range rec.Fields {
			fe := &rec.Fields[i]
			if input.Field != "" && !strings.Contains(strings.ToLower(fe.Name), strings.ToLower(input.Field)) {
				continue
			}
			cf := countryField{
				Name:        fe.Name,
				Category:    fe.Category,
				MultiValued: fe.IsMultiValued,
			}
			if fe.IsMultiValued {
				cf.Values = fe.Values
			} else if len(fe.Values) == 1 {
				cf.Value = fe.Values[0].Value
			} else {
				cf.Value = fe.RawValue
			}
			out.Fields = append(out.Fields, cf)
		}
		return nil, out, nil
	})
}

type trendInput struct {
	DatabaseID int    `json:"database_id" jsonschema:"Numeric field identifier from the catalog"`
	Category   string `json:"category,omitempty" jsonschema:"Category the field belongs to"`
	Name       string `json:"name,omitempty" jsonschema:"Field name, used when the field is uncategorized"`
}

type trendOutput struct {
	Points []history.TrendPoint `json:"points"`
}

func (s *Server) registerTrendTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "field_coverage_trend",
		Description: "Show how a field's cross-country coverage changed across recorded snapshots",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input trendInput) (*mcp.CallToolResult, trendOutput, error) {
		if s.history == nil {
			return nil, trendOutput{}, fmt.Errorf("history tracking is not enabled")
		}
		key := catalog.Key{DatabaseID: input.DatabaseID, Category: input.Category, Name: input.Name}
		points, err := s.history.FieldTrend(ctx, key)
		if err != nil {
			return nil, trendOutput{}, err
		}
		return nil, trendOutput{Points: points}, nil
	})
}
