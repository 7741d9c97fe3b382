package article

import (
	"encoding/json"
	"maps"
	"slices"
)

// Entities are the named string lists extracted from an article.
// Categories other than tickers and keywords are kept in Extra and inlined on the wire.
type Entities struct {
	Tickers  []string            `bson:"tickers,omitempty"`
	Keywords []string            `bson:"keywords,omitempty"`
	Extra    map[string][]string `bson:",inline"`
}

// Quality is the relevance signal attached by the enrichment step.
type Quality struct {
	Score  float64        `bson:"llmScore"`
	Reason string         `bson:"reason,omitempty"`
	Extra  map[string]any `bson:",inline"`
}

func (e Entities) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(e.Extra)+2)
	for k, v := range e.Extra {
		out[k] = nonNilStrings(v)
	}
	out["tickers"] = nonNilStrings(e.Tickers)
	out["keywords"] = nonNilStrings(e.Keywords)
	return json.Marshal(out)
}

func (e *Entities) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entities{}
	for k, v := range raw {
		switch k {
		case "tickers":
			e.Tickers = v
		case "keywords":
			e.Keywords = v
		default:
			if e.Extra == nil {
				e.Extra = make(map[string][]string)
			}
			e.Extra[k] = v
		}
	}
	return nil
}

func (q Quality) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(q.Extra)+2)
	maps.Copy(out, q.Extra)
	out["llmScore"] = q.Score
	if q.Reason != "" {
		out["reason"] = q.Reason
	}
	return json.Marshal(out)
}

func (q *Quality) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*q = Quality{}
	for k, v := range raw {
		switch k {
		case "llmScore":
			if err := json.Unmarshal(v, &q.Score); err != nil {
				return err
			}
		case "reason":
			if err := json.Unmarshal(v, &q.Reason); err != nil {
				return err
			}
		default:
			var value any
			if err := json.Unmarshal(v, &value); err != nil {
				return err
			}
			if q.Extra == nil {
				q.Extra = make(map[string]any)
			}
			q.Extra[k] = value
		}
	}
	return nil
}

// All returns every category, tickers and keywords included, for matchers that do not
// care about the category name.
func (e Entities) All() map[string][]string {
	out := make(map[string][]string, len(e.Extra)+2)
	maps.Copy(out, e.Extra)
	if len(e.Tickers) > 0 {
		out["tickers"] = e.Tickers
	}
	if len(e.Keywords) > 0 {
		out["keywords"] = e.Keywords
	}
	return out
}

func (e Entities) clone() Entities {
	out := Entities{
		Tickers:  slices.Clone(e.Tickers),
		Keywords: slices.Clone(e.Keywords),
	}
	if len(e.Extra) > 0 {
		out.Extra = make(map[string][]string, len(e.Extra))
		for k, v := range e.Extra {
			out.Extra[k] = slices.Clone(v)
		}
	}
	return out
}

func (e *Entities) normalize() {
	if len(e.Tickers) == 0 {
		e.Tickers = nil
	}
	if len(e.Keywords) == 0 {
		e.Keywords = nil
	}
	if len(e.Extra) == 0 {
		e.Extra = nil
	}
}

func (q Quality) clone() Quality {
	return Quality{Score: q.Score, Reason: q.Reason, Extra: maps.Clone(q.Extra)}
}

func (q *Quality) normalize() {
	if len(q.Extra) == 0 {
		q.Extra = nil
	}
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
