package tags

import "strings"

const (
	DefaultPrefix   = "topic"
	SystemPrefix    = "system"
	BookshelfPrefix = "bookshelf"

	// Incoming is added to every desktop upload so moderators can find it.
	Incoming = SystemPrefix + ":Incoming"
)

// Normalized is the result of running the tag list of a book through
// Normalize.
type Normalized struct {
	Tags   []string
	Search string
	// Bookshelves holds the values of bookshelf: tags in order of
	// appearance. The tags themselves stay in Tags.
	Bookshelves []string
}

// Normalize prefixes bare tags with topic:, keeps the input order and
// builds the search string from the title plus every non-system tag value.
// Duplicates are kept. Running it on its own output changes nothing.
func Normalize(title string, raw []string) Normalized {
	out := Normalized{
		Tags: make([]string, 0, len(raw)),
	}

	terms := []string{strings.ToLower(title)}
	for _, t := range raw {
		prefix, value, tag := split(t)
		out.Tags = append(out.Tags, tag)

		if prefix == BookshelfPrefix {
			out.Bookshelves = append(out.Bookshelves, value)
		}
		if prefix == SystemPrefix {
			continue
		}
		terms = append(terms, strings.ToLower(value))
	}
	out.Search = strings.Join(terms, " ")

	return out
}

// NormalizeTag applies the read-side normalization to a single stored tag.
// Records written before prefixes were enforced may still hold bare values.
func NormalizeTag(t string) string {
	_, _, tag := split(t)
	return tag
}

// IsSystem reports whether the tag is excluded from search.
func IsSystem(t string) bool {
	return strings.HasPrefix(t, SystemPrefix+":")
}

func split(t string) (prefix, value, tag string) {
	i := strings.Index(t, ":")
	if i < 0 {
		return DefaultPrefix, t, DefaultPrefix + ":" + t
	}
	return t[:i], t[i+1:], t
}
