package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// maxModelInput bounds the text sent to the model. Longer documents are
// truncated; the leading text carries the densest metadata for invoices
// and letters.
const maxModelInput = 8000

// maxExtracted bounds the entity and keyword list sizes accepted from
// the model.
const maxExtracted = 25

const extractionPrompt = `Extract named entities and search keywords from the document text below.
Return a JSON object with exactly two keys:
  "entities": up to %d names of people, companies, or organizations mentioned
  "keywords": up to %d short terms a user would search for to find this document
Use the document's own language. Do not invent values.

Document text:
%s`

type modelExtraction struct {
	Entities []string `json:"entities"`
	Keywords []string `json:"keywords"`
}

func (e *Extractor) extractWithModel(ctx context.Context, text string) (entities, keywords []string, err error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, nil
	}
	if len(text) > maxModelInput {
		text = text[:maxModelInput]
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.llm.CompleteJSON(ctx, fmt.Sprintf(extractionPrompt, maxExtracted, maxExtracted, text))
	if err != nil {
		return nil, nil, err
	}

	var parsed modelExtraction
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, nil, fmt.Errorf("parse model output: %w", err)
	}

	return clampList(parsed.Entities), clampList(parsed.Keywords), nil
}

func clampList(in []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == maxExtracted {
			break
		}
	}
	return out
}
