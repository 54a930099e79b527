package genai

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// responseSchema accepts any well-formed generateContent body; content
// presence is checked after decoding.
const responseSchema = `{
  "type": "object",
  "properties": {
    "candidates": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "content": {
            "type": "object",
            "properties": {
              "parts": {
                "type": "array",
                "items": {
                  "type": "object",
                  "properties": {
                    "text": {"type": "string"},
                    "inlineData": {"$ref": "#/definitions/blob"},
                    "inline_data": {"$ref": "#/definitions/blob"}
                  }
                }
              }
            }
          }
        }
      }
    }
  },
  "definitions": {
    "blob": {
      "type": "object",
      "required": ["data"],
      "properties": {
        "mimeType": {"type": "string"},
        "data": {"type": "string", "minLength": 1}
      }
    }
  }
}`

var compiledSchema = mustCompile(responseSchema)

func mustCompile(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("genai: invalid response schema: %v", err))
	}
	return schema
}

func validateResponse(body []byte) error {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(errs, "; "))
	}

	return nil
}
