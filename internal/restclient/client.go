// Package restclient queries the dcm4chee-arc QIDO-RS instances endpoint
// used by the Validate workflow to confirm a SOP Instance UID landed on
// the destination PACS (spec.md §4.8), validating the two DICOM JSON
// element shapes it may return before trusting them.
package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hexmed-tecnologia/dicomsync/internal/domain"
)

const queryTimeout = 20 * time.Second

// elementSchema validates one DICOM JSON element: either a scalar value
// or a PersonName-style object carrying "Alphabetic", nested under the
// standard "Value" array (DICOM PS3.18 Annex F).
const elementSchema = `{
	"type": "object",
	"properties": {
		"vr": {"type": "string"},
		"Value": {
			"type": "array",
			"items": {
				"oneOf": [
					{"type": ["string", "number"]},
					{
						"type": "object",
						"properties": {"Alphabetic": {"type": "string"}},
						"additionalProperties": true
					}
				]
			}
		}
	},
	"required": ["Value"]
}`

// Dataset is one instance entry from the QIDO-RS response: tag (e.g.
// "00100010") to its raw JSON element.
type Dataset map[string]json.RawMessage

// QueryResult is the outcome of one SOPInstanceUID lookup, mirroring the
// three-way classification in spec.md §4.8.
type QueryResult struct {
	Outcome    domain.RESTOutcome
	HTTPStatus string
	Detail     string
	Dataset    Dataset
}

// Client wraps an *http.Client with the query timeout and schema used by
// every Validate lookup.
type Client struct {
	HTTP   *http.Client
	schema gojsonschema.JSONLoader
}

// New returns a Client with the spec's 20-second-per-call timeout.
func New() *Client {
	return &Client{
		HTTP:   &http.Client{Timeout: queryTimeout},
		schema: gojsonschema.NewStringLoader(elementSchema),
	}
}

// QueryInstance performs GET .../rs/instances?SOPInstanceUID={iuid}
// against restHost/aet and classifies the result (spec.md §4.8):
//   - HTTP status >= 400 is NOT_FOUND;
//   - a transport failure, a body that fails to decode, or an element
//     that fails the DICOM-shape schema check is API_ERROR;
//   - a non-empty, schema-valid instance list is OK.
func (c *Client) QueryInstance(ctx context.Context, restHost, aet, iuid string) QueryResult {
	endpoint := fmt.Sprintf("http://%s/dcm4chee-arc/aets/%s/rs/instances?SOPInstanceUID=%s",
		restHost, aet, url.QueryEscape(iuid))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return QueryResult{Outcome: domain.RESTOutcomeAPIError, HTTPStatus: "ERR", Detail: err.Error()}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return QueryResult{Outcome: domain.RESTOutcomeAPIError, HTTPStatus: "ERR", Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return QueryResult{Outcome: domain.RESTOutcomeAPIError, HTTPStatus: "ERR", Detail: err.Error()}
	}

	httpStatus := strconv.Itoa(resp.StatusCode)

	if resp.StatusCode >= http.StatusBadRequest {
		return QueryResult{Outcome: domain.RESTOutcomeNotFound, HTTPStatus: httpStatus, Detail: strings.TrimSpace(string(body))}
	}

	var instances []Dataset

	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		if err := json.Unmarshal(body, &instances); err != nil {
			return QueryResult{Outcome: domain.RESTOutcomeAPIError, HTTPStatus: "ERR", Detail: fmt.Sprintf("decode response: %v", err)}
		}
	}

	if len(instances) == 0 {
		return QueryResult{Outcome: domain.RESTOutcomeNotFound, HTTPStatus: httpStatus}
	}

	first := instances[0]
	if err := c.validateShape(first); err != nil {
		return QueryResult{Outcome: domain.RESTOutcomeAPIError, HTTPStatus: "ERR", Detail: err.Error()}
	}

	return QueryResult{Outcome: domain.RESTOutcomeOK, HTTPStatus: httpStatus, Dataset: first}
}

// validateShape rejects any element of dataset that does not match one
// of the two recognized DICOM JSON shapes.
func (c *Client) validateShape(dataset Dataset) error {
	for tag, raw := range dataset {
		result, err := gojsonschema.Validate(c.schema, gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return fmt.Errorf("tag %s: %w", tag, err)
		}

		if !result.Valid() {
			return fmt.Errorf("tag %s: unrecognized DICOM element shape", tag)
		}
	}

	return nil
}

// Text extracts the display string for tag from dataset: the
// "Alphabetic" field of a PersonName-shaped value, else its first
// non-empty scalar, else "" when the tag is absent or empty.
func Text(dataset Dataset, tag string) string {
	raw, ok := dataset[tag]
	if !ok {
		return ""
	}

	var elem struct {
		Value []json.RawMessage `json:"Value"`
	}

	if err := json.Unmarshal(raw, &elem); err != nil || len(elem.Value) == 0 {
		return ""
	}

	first := elem.Value[0]

	var personName struct {
		Alphabetic string `json:"Alphabetic"`
	}

	if err := json.Unmarshal(first, &personName); err == nil && personName.Alphabetic != "" {
		return personName.Alphabetic
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(first, &obj); err == nil {
		for _, v := range obj {
			if s := decodeScalar(v); s != "" {
				return s
			}
		}

		return ""
	}

	return decodeScalar(first)
}

// decodeScalar renders a string or number JSON value as trimmed text.
func decodeScalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return strings.TrimSpace(n.String())
	}

	return ""
}
