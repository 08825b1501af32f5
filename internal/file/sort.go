package file

import (
	"sort"
	"strconv"
	"strings"
)

// SortField enumerates the sortable record fields.
type SortField string

// SortOrder enumerates sort directions.
type SortOrder string

const (
	SortByDate SortField = "date"
	SortByType SortField = "type"
	SortByName SortField = "name"
	SortBySize SortField = "size"

	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ListOptions carries the sort contract both metadata backends implement.
// Ordering must be total and stable: ties within the chosen field break by
// id ascending, so output order never depends on the backend.
type ListOptions struct {
	Field SortField
	Order SortOrder
}

// DefaultListOptions returns the contract defaults: date descending.
func DefaultListOptions() ListOptions {
	return ListOptions{Field: SortByDate, Order: OrderDesc}
}

// ParseSortField maps caller input to a sort field, falling back to date
// for anything unrecognized.
func ParseSortField(s string) SortField {
	switch SortField(strings.ToLower(strings.TrimSpace(s))) {
	case SortByType:
		return SortByType
	case SortByName:
		return SortByName
	case SortBySize:
		return SortBySize
	default:
		return SortByDate
	}
}

// ParseSortOrder maps caller input to a direction, falling back to descending.
func ParseSortOrder(s string) SortOrder {
	if SortOrder(strings.ToLower(strings.TrimSpace(s))) == OrderAsc {
		return OrderAsc
	}
	return OrderDesc
}

// ParseListOptions combines both parses; unrecognized values become defaults
// rather than errors.
func ParseListOptions(sortBy, order string) ListOptions {
	return ListOptions{Field: ParseSortField(sortBy), Order: ParseSortOrder(order)}
}

// SortRecords orders records in place per the contract. This is the reference
// ordering: the SQL ORDER BY clauses and Mongo sort documents must produce
// the same sequence for the same data set.
func SortRecords(records []Record, opts ListOptions) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if c := compareField(a, b, opts.Field); c != 0 {
			if opts.Order == OrderAsc {
				return c < 0
			}
			return c > 0
		}
		return compareIDs(a.ID, b.ID) < 0
	})
}

func compareField(a, b Record, field SortField) int {
	switch field {
	case SortByType:
		return strings.Compare(a.Mimetype, b.Mimetype)
	case SortByName:
		return strings.Compare(a.OriginalName, b.OriginalName)
	case SortBySize:
		switch {
		case a.Size < b.Size:
			return -1
		case a.Size > b.Size:
			return 1
		default:
			return 0
		}
	default:
		switch {
		case a.UploadDate.Before(b.UploadDate):
			return -1
		case a.UploadDate.After(b.UploadDate):
			return 1
		default:
			return 0
		}
	}
}

// compareIDs orders ids numerically when both sides parse as integers
// (postgres serial ids), lexicographically otherwise (mongo object ids).
func compareIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
