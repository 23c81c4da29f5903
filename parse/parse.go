// CLAUDE:SUMMARY Transforms verbose Gatsby page-data JSON into clean country records.
// Package parse extracts country records from the source's verbose
// page-data documents. Field data content is preserved byte-for-byte;
// only the surrounding build-system scaffolding is stripped.
package parse

import (
	"encoding/json"
	"fmt"
	"time"

	"factharvest/record"
)

type pageData struct {
	Result struct {
		Data struct {
			Country *countryNode `json:"country"`
			Fields  *struct {
				Nodes []fieldNode `json:"nodes"`
			} `json:"fields"`
		} `json:"data"`
	} `json:"result"`
}

type countryNode struct {
	Name    string `json:"name"`
	Region  string `json:"region"`
	Updated string `json:"updated"`
}

type fieldNode struct {
	Name       string      `json:"name"`
	Data       string      `json:"data"`
	FieldLabel []fieldMeta `json:"fieldLabel"`
	Subfields  []struct {
		Label string `json:"label"`
	} `json:"subfields"`
	Media []mediaNode `json:"media"`
}

type fieldMeta struct {
	DatabaseID int  `json:"databaseId"`
	Rank       bool `json:"rank"`
}

type mediaNode struct {
	Type      string `json:"type"`
	Label     string `json:"label"`
	AltText   string `json:"altText"`
	Caption   string `json:"caption"`
	LocalFile *struct {
		PublicURL string `json:"publicURL"`
	} `json:"localFile"`
}

// CountryRecord builds a record from one page-data document. The
// payload must carry result.data; individual fields that cannot be
// decoded are dropped, not fatal.
func CountryRecord(body []byte, slug, sourceURL string, scrapedAt time.Time) (*record.CountryRecord, error) {
	var pd pageData
	if err := json.Unmarshal(body, &pd); err != nil {
		return nil, fmt.Errorf("parse: %s: %w", slug, err)
	}
	if pd.Result.Data.Country == nil && pd.Result.Data.Fields == nil {
		return nil, fmt.Errorf("parse: %s: payload has neither country nor fields", slug)
	}

	rec := &record.CountryRecord{
		CountryID: slug,
		SourceURL: sourceURL,
		ScrapedAt: scrapedAt.UTC().Format(time.RFC3339),
	}
	if c := pd.Result.Data.Country; c != nil {
		rec.Name = c.Name
		rec.Region = c.Region
		rec.LastUpdated = NormalizeDate(c.Updated)
	}
	if pd.Result.Data.Fields != nil {
		for _, node := range pd.Result.Data.Fields.Nodes {
			rec.Fields = append(rec.Fields, entryFrom(node))
		}
	}
	return rec, nil
}

func entryFrom(node fieldNode) record.FieldEntry {
	e := record.FieldEntry{
		Name:     node.Name,
		RawValue: node.Data,
	}
	if len(node.FieldLabel) > 0 {
		e.DatabaseID = node.FieldLabel[0].DatabaseID
		e.HasRanking = node.FieldLabel[0].Rank
	}
	for _, sf := range node.Subfields {
		if sf.Label != "" {
			e.Subfields = append(e.Subfields, sf.Label)
		}
	}
	for _, m := range node.Media {
		if m.Type == "" || m.LocalFile == nil || m.LocalFile.PublicURL == "" {
			continue
		}
		e.Media = append(e.Media, record.MediaRef{
			Type:    m.Type,
			Label:   m.Label,
			AltText: m.AltText,
			Caption: m.Caption,
			URL:     m.LocalFile.PublicURL,
		})
	}
	return e
}
