// Package discovery extracts the database_id to category mapping the
// source publishes as a static query result. The mapping is what lets
// downstream refinement attach a semantic category to every field.
package discovery

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// MappingFile is the persisted form of a discovered mapping. Keys are
// strings in the file for stability across sources that emit either
// numeric or string ids.
type MappingFile struct {
	Metadata MappingMetadata   `json:"metadata"`
	Mapping  map[string]string `json:"mapping"`
}

type MappingMetadata struct {
	FetchedAt       string `json:"fetched_at"`
	SourceURL       string `json:"source_url"`
	TotalCategories int    `json:"total_categories"`
	TotalFields     int    `json:"total_fields"`
}

type categoryPayload struct {
	Data   *categoryData `json:"data"`
	Result *struct {
		Data *categoryData `json:"data"`
	} `json:"result"`
}

type categoryData struct {
	AllLaunchpadCategory struct {
		Nodes []struct {
			Name        string `json:"name"`
			FieldLabels []struct {
				DatabaseID int `json:"databaseId"`
			} `json:"fieldLabels"`
		} `json:"nodes"`
	} `json:"allLaunchpadCategory"`
}

// ExtractMapping pulls the id-to-category mapping out of the category
// query document. The payload carries the category list either at the
// top level or wrapped in result, depending on how it was served.
func ExtractMapping(body []byte) (map[int]string, int, error) {
	var payload categoryPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, 0, fmt.Errorf("discovery: parse category payload: %w", err)
	}
	data := payload.Data
	if data == nil && payload.Result != nil {
		data = payload.Result.Data
	}
	if data == nil {
		return nil, 0, fmt.Errorf("discovery: category payload has no data")
	}
	nodes := data.AllLaunchpadCategory.Nodes
	if len(nodes) == 0 {
		return nil, 0, fmt.Errorf("discovery: no categories in payload")
	}
	mapping := make(map[int]string)
	for _, node := range nodes {
		if node.Name == "" {
			continue
		}
		for _, fl := range node.FieldLabels {
			if fl.DatabaseID != 0 {
				mapping[fl.DatabaseID] = node.Name
			}
		}
	}
	return mapping, len(nodes), nil
}

// NewMappingFile wraps a mapping with provenance metadata for
// persistence.
func NewMappingFile(mapping map[int]string, categories int, sourceURL string, now time.Time) *MappingFile {
	f := &MappingFile{
		Metadata: MappingMetadata{
			FetchedAt:       now.UTC().Format(time.RFC3339),
			SourceURL:       sourceURL,
			TotalCategories: categories,
			TotalFields:     len(mapping),
		},
		Mapping: make(map[string]string, len(mapping)),
	}
	for id, name := range mapping {
		f.Mapping[strconv.Itoa(id)] = name
	}
	return f
}

// IDs returns the mapped database ids in ascending order.
func (f *MappingFile) IDs() []int {
	ids := make([]int, 0, len(f.Mapping))
	for k := range f.Mapping {
		if id, err := strconv.Atoi(k); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Runtime converts the persisted string-keyed mapping back to the
// integer-keyed form the enricher consumes. Unparseable keys are
// dropped.
func (f *MappingFile) Runtime() map[int]string {
	out := make(map[int]string, len(f.Mapping))
	for k, v := range f.Mapping {
		if id, err := strconv.Atoi(k); err == nil {
			out[id] = v
		}
	}
	return out
}
