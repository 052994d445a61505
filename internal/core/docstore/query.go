package docstore

import "sort"

// Matches reports whether doc belongs to the result of q
func (q Query) Matches(collection string, doc Doc) bool {
	if collection != q.Collection {
		return false
	}
	if q.DocID != "" && doc.ID != q.DocID {
		return false
	}
	if q.Where != nil && doc.Fields.String(q.Where.Field) != q.Where.Equals {
		return false
	}
	return true
}

// Sort orders docs by q.OrderBy in place. The sort is stable, so documents with
// equal keys keep the order they were given in.
func (q Query) Sort(docs []Doc) {
	if q.OrderBy == nil {
		return
	}
	field, desc := q.OrderBy.Field, q.OrderBy.Desc
	sort.SliceStable(docs, func(i, j int) bool {
		c := CompareValues(docs[i].Fields[field], docs[j].Fields[field])
		if desc {
			return c > 0
		}
		return c < 0
	})
}
