package catalogcache

import (
	"strconv"
	"strings"
)

// Tag identifies the shape of a query. Tags are a closed set: the store
// iterates entries by tag equality, never by structural key matching.
type Tag uint8

const (
	// TagProducts addresses list entries (one per search/sort combination).
	TagProducts Tag = iota + 1
	// TagProduct addresses detail entries (one per product id).
	TagProduct
)

func (t Tag) String() string {
	switch t {
	case TagProducts:
		return "products"
	case TagProduct:
		return "product"
	default:
		return "unknown"
	}
}

// Key is the identity of one cache slot: a tag plus its parameters.
// Two keys are equal iff their tags and parameters are equal; keys are
// comparable and safe to use as map keys. Keys sharing a tag but differing in
// parameters are independent slots.
type Key struct {
	tag   Tag
	query string
	sort  string
	order string
	id    int
}

// ListKey builds the key for a list query. The search text is trimmed; a sort
// spec is carried only when both field and direction are present, otherwise
// the key is the unsorted one (mirrors the repository contract).
func ListKey(query, sortBy, order string) Key {
	if sortBy == "" || order == "" {
		sortBy, order = "", ""
	}
	return Key{
		tag:   TagProducts,
		query: strings.TrimSpace(query),
		sort:  sortBy,
		order: order,
	}
}

// DetailKey builds the key for a detail query.
func DetailKey(id int) Key {
	return Key{tag: TagProduct, id: id}
}

func (k Key) Tag() Tag { return k.tag }

// ID returns the product id of a detail key; zero for list keys.
func (k Key) ID() int { return k.id }

// Storage returns the canonical provider key. Parameter order is fixed so the
// same logical query always maps to the same slot.
func (k Key) Storage() string {
	var b strings.Builder
	b.WriteString("q:")
	b.WriteString(k.tag.String())
	b.WriteByte(':')
	switch k.tag {
	case TagProduct:
		b.WriteString(strconv.Itoa(k.id))
	default:
		b.WriteString("q=")
		b.WriteString(k.query)
		b.WriteString("|sortBy=")
		b.WriteString(k.sort)
		b.WriteString("|order=")
		b.WriteString(k.order)
	}
	return b.String()
}

func (k Key) String() string { return k.Storage() }
