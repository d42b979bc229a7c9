package content

import (
	"github.com/BaSui01/structflow/structured/jsoncomplete"
)

// Options combines completion and parsing settings for CompleteThenParse.
type Options struct {
	Complete jsoncomplete.Options
	// AllowNonFinite accepts NaN and ±Infinity in both stages.
	// It is OR-ed with Complete.AllowNonFinite.
	AllowNonFinite bool
}

// ParseOptions derives the parser settings matching o.
func (o Options) ParseOptions() ParseOptions {
	return ParseOptions{
		MaxDepth:       o.Complete.MaxDepth,
		AllowNonFinite: o.AllowNonFinite || o.Complete.AllowNonFinite,
	}
}

// CompleteThenParse completes a possibly truncated document with the
// configured policy and parses the result.
func CompleteThenParse(text string, opts Options) (Value, error) {
	copts := opts.Complete
	copts.AllowNonFinite = copts.AllowNonFinite || opts.AllowNonFinite

	res, err := jsoncomplete.CompleteString(text, copts)
	if err != nil {
		return Value{}, err
	}
	return ParseString(res.ApplyString(text), opts.ParseOptions())
}
