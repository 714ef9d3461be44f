package mcp

import "github.com/tutao/search-core/internal/app"

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query              string `json:"query" jsonschema:"the search query to tokenize and run against the encrypted index"`
	RestrictionType    string `json:"restrictionType,omitempty" jsonschema:"entity type to search, default mail"`
	AttributeIDs       []int  `json:"attributeIds,omitempty" jsonschema:"restrict matches to these attribute ids"`
	ListID             string `json:"listId,omitempty" jsonschema:"restrict matches to this list id"`
	Start              string `json:"start,omitempty" jsonschema:"restrict to entities at or before this RFC3339 timestamp (the newer bound)"`
	End                string `json:"end,omitempty" jsonschema:"restrict to entities at or after this RFC3339 timestamp (the older bound)"`
	MinSuggestionCount int    `json:"minSuggestionCount,omitempty" jsonschema:"run the suggestion path when > 0; the last query word is matched as a prefix, and a multi-word query stops after this many matching entities"`
	MaxResults         int    `json:"maxResults,omitempty" jsonschema:"cap the number of results on this page, 0 uses the configured default"`
}

// SearchOutput defines the output schema for the search and
// get_more_search_results tools: the result page plus the full state the
// caller must pass back unchanged to page further, since model.SearchResult
// is itself the pagination cursor.
type SearchOutput struct {
	Query   string                 `json:"query" jsonschema:"the query this page answers"`
	Results []SearchResultOutput   `json:"results" jsonschema:"this page's results, newest first"`
	State   app.SearchResultState  `json:"state" jsonschema:"opaque cursor state; pass verbatim to get_more_search_results to fetch another page"`
}

// SearchResultOutput is one (listId, id) result pair.
type SearchResultOutput struct {
	ListID string `json:"listId" jsonschema:"the list (e.g. mail folder) the result belongs to"`
	ID     string `json:"id" jsonschema:"base64-encoded entity id"`
}

// GetMoreSearchResultsInput defines the input schema for the
// get_more_search_results tool.
type GetMoreSearchResultsInput struct {
	State app.SearchResultState `json:"state" jsonschema:"the state returned by a previous search or get_more_search_results call"`
	Count int                   `json:"count" jsonschema:"number of additional results to fetch"`
}

// ExtendIndexInput defines the input schema for the extend_index tool.
type ExtendIndexInput struct {
	Since string `json:"since" jsonschema:"extend index coverage back to this RFC3339 timestamp"`
}

// ExtendIndexOutput defines the output schema for the extend_index tool.
type ExtendIndexOutput struct {
	CurrentIndexTimestamp string `json:"currentIndexTimestamp" jsonschema:"how far back index coverage now reaches, RFC3339"`
}

func toSearchResultOutputs(state app.SearchResultState) []SearchResultOutput {
	out := make([]SearchResultOutput, len(state.Results))
	for i, r := range state.Results {
		out[i] = SearchResultOutput{ListID: r.ListID, ID: r.ID}
	}
	return out
}
