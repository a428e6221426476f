package pkey

import (
	"strings"

	"github.com/ValentinKolb/dDoc/lib/dberr"
)

// Kind selects how the effective partition key is derived
type Kind string

const (
	KindHash  Kind = "Hash"
	KindRange Kind = "Range"
)

// Definition is the partition key definition of a collection
type Definition struct {
	Paths   []string `json:"paths"`
	Kind    Kind     `json:"kind,omitempty"`
	Version int      `json:"version,omitempty"`
}

// kind returns the partitioning kind, hash is the default
func (d *Definition) kind() Kind {
	if d.Kind == KindRange {
		return KindRange
	}
	return KindHash
}

// ParsedPaths returns the segments of every path of the definition
func (d *Definition) ParsedPaths() ([][]string, error) {
	parsed := make([][]string, len(d.Paths))
	for i, p := range d.Paths {
		segments, err := ParsePath(p)
		if err != nil {
			return nil, err
		}
		parsed[i] = segments
	}
	return parsed, nil
}

// ParsePath splits a partition key path like /address/"zip code"/value into its
// segments. Segments may be quoted with ' or " and use \ to escape the quote.
// A trailing slash is ignored.
func ParsePath(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, dberr.Client(dberr.ErrMalformedPath, "path %q must start with /", path)
	}

	var segments []string
	i := 0
	for i < len(path) {
		if path[i] != '/' {
			return nil, dberr.Client(dberr.ErrMalformedPath, "path %q: expected / at offset %d", path, i)
		}
		i++
		if i == len(path) {
			break
		}

		switch quote := path[i]; quote {
		case '"', '\'':
			var sb strings.Builder
			i++
			closed := false
			for i < len(path) {
				c := path[i]
				if c == '\\' && i+1 < len(path) {
					sb.WriteByte(path[i+1])
					i += 2
					continue
				}
				i++
				if c == quote {
					closed = true
					break
				}
				sb.WriteByte(c)
			}
			if !closed {
				return nil, dberr.Client(dberr.ErrMalformedPath, "path %q: unterminated quoted segment", path)
			}
			segments = append(segments, sb.String())
		default:
			end := strings.IndexByte(path[i:], '/')
			if end < 0 {
				end = len(path) - i
			}
			if end == 0 {
				return nil, dberr.Client(dberr.ErrMalformedPath, "path %q contains an empty segment", path)
			}
			segments = append(segments, path[i:i+end])
			i += end
		}
	}

	if len(segments) == 0 {
		return nil, dberr.Client(dberr.ErrMalformedPath, "path %q has no segments", path)
	}
	return segments, nil
}
