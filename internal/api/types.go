package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rickgao/cg-market-etl/internal/model"
)

// MarketsPath is the markets listing endpoint, relative to the base URL.
const MarketsPath = "/coins/markets"

// MarketsOrder sorts markets by market cap, largest first.
const MarketsOrder = "market_cap_desc"

// decodeRecords parses a JSON array of market objects. Numbers are kept as
// json.Number. A JSON null body decodes to an empty page.
func decodeRecords(body []byte) ([]model.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var records []model.Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return records, nil
}
