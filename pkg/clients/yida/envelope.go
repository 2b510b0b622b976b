package yida

import (
	"bytes"
	"encoding/json"
)

// FormInstance is one Yida form row: its instance id and raw field values.
// Numbers are kept as json.Number so quantities keep their exact digits.
type FormInstance struct {
	ID   string
	Data map[string]any
}

// decodeSearchPage normalizes the search response. The list has been seen at
// "data", "result.data" and "result.values"; rows carry their fields either
// as an object or as a JSON string. A body that matches none of these shapes
// is an empty page.
func decodeSearchPage(raw []byte) SearchPage {
	var envelope map[string]json.RawMessage
	if err := decodeJSON(raw, &envelope); err != nil {
		return SearchPage{}
	}

	page := SearchPage{
		CurrentPage: intField(envelope, "currentPage", "pageNumber"),
		TotalCount:  intField(envelope, "totalCount"),
	}

	list, ok := envelope["data"]
	if !ok {
		if nested, found := envelope["result"]; found {
			var inner map[string]json.RawMessage
			if decodeJSON(nested, &inner) == nil {
				if page.TotalCount == 0 {
					page.TotalCount = intField(inner, "totalCount")
				}
				if page.CurrentPage == 0 {
					page.CurrentPage = intField(inner, "currentPage", "pageNumber")
				}
				list, ok = inner["data"]
				if !ok {
					list, ok = inner["values"]
				}
			}
		}
	}
	if !ok {
		return page
	}

	var rows []map[string]json.RawMessage
	if err := decodeJSON(list, &rows); err != nil {
		return page
	}

	page.Instances = make([]FormInstance, 0, len(rows))
	for _, row := range rows {
		inst := FormInstance{
			ID:   stringField(row, "formInstanceId", "formInstId", "instanceId", "id"),
			Data: formData(row),
		}
		page.Instances = append(page.Instances, inst)
	}
	return page
}

func formData(row map[string]json.RawMessage) map[string]any {
	raw, ok := row["formData"]
	if !ok {
		return map[string]any{}
	}

	var data map[string]any
	if err := decodeJSON(raw, &data); err == nil {
		return data
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if err := decodeJSON([]byte(encoded), &data); err == nil {
			return data
		}
	}
	return map[string]any{}
}

// decodeResultIDs reads "result" as either one id or a list of ids.
func decodeResultIDs(raw []byte) []string {
	var envelope map[string]json.RawMessage
	if err := decodeJSON(raw, &envelope); err != nil {
		return nil
	}
	result, ok := envelope["result"]
	if !ok {
		return nil
	}

	var one string
	if err := json.Unmarshal(result, &one); err == nil {
		if one == "" {
			return nil
		}
		return []string{one}
	}

	var many []string
	if err := json.Unmarshal(result, &many); err == nil {
		return many
	}
	return nil
}

func decodeJSON(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}

func stringField(row map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func intField(row map[string]json.RawMessage, keys ...string) int {
	for _, key := range keys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return n
		}
	}
	return 0
}
