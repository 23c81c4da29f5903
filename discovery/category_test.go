package discovery

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const samplePayload = `{
  "data": {
    "allLaunchpadCategory": {
      "nodes": [
        {
          "name": "Economy",
          "fieldLabels": [{"databaseId": 208}, {"databaseId": 212}]
        },
        {
          "name": "Geography",
          "fieldLabels": [{"databaseId": 279}]
        },
        {
          "name": "",
          "fieldLabels": [{"databaseId": 999}]
        }
      ]
    }
  }
}`

func TestExtractMapping(t *testing.T) {
	mapping, categories, err := ExtractMapping([]byte(samplePayload))
	if err != nil {
		t.Fatalf("ExtractMapping: %v", err)
	}
	if categories != 3 {
		t.Errorf("categories = %d, want 3", categories)
	}
	want := map[int]string{208: "Economy", 212: "Economy", 279: "Geography"}
	if diff := cmp.Diff(want, mapping); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractMappingResultWrapped(t *testing.T) {
	wrapped := `{"result": ` + samplePayload + `}`
	mapping, _, err := ExtractMapping([]byte(wrapped))
	if err != nil {
		t.Fatalf("ExtractMapping: %v", err)
	}
	if mapping[208] != "Economy" {
		t.Errorf("mapping = %v", mapping)
	}
}

func TestExtractMappingErrors(t *testing.T) {
	for _, body := range []string{`not json`, `{}`, `{"data":{"allLaunchpadCategory":{"nodes":[]}}}`} {
		if _, _, err := ExtractMapping([]byte(body)); err == nil {
			t.Errorf("ExtractMapping(%q) should fail", body)
		}
	}
}

func TestMappingFileRoundTrip(t *testing.T) {
	mapping := map[int]string{208: "Economy", 279: "Geography"}
	f := NewMappingFile(mapping, 2, "https://example.org/cat.json",
		time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	if f.Metadata.TotalFields != 2 || f.Metadata.TotalCategories != 2 {
		t.Errorf("metadata = %+v", f.Metadata)
	}
	if f.Metadata.FetchedAt != "2026-08-31T00:00:00Z" {
		t.Errorf("FetchedAt = %q", f.Metadata.FetchedAt)
	}
	if diff := cmp.Diff(mapping, f.Runtime()); diff != "" {
		t.Errorf("Runtime mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{208, 279}, f.IDs()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
}
