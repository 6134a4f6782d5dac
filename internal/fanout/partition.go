package fanout

import "iter"

// Partition regroups follower pages into units of exactly unitSize ids; only
// the last unit may be smaller. At most one page plus a partial unit is held
// in memory, and units never share backing arrays with the pages.
func Partition(postID uint64, pages iter.Seq2[[]uint64, error], unitSize int) iter.Seq2[DispatchUnit, error] {
	if unitSize <= 0 {
		unitSize = DefaultUnitSize
	}
	return func(yield func(DispatchUnit, error) bool) {
		carry := make([]uint64, 0, unitSize)
		for page, err := range pages {
			if err != nil {
				yield(DispatchUnit{}, err)
				return
			}
			for len(page) > 0 {
				n := min(unitSize-len(carry), len(page))
				carry = append(carry, page[:n]...)
				page = page[n:]
				if len(carry) == unitSize {
					if !yield(DispatchUnit{PostID: postID, FollowerIDs: carry}, nil) {
						return
					}
					carry = make([]uint64, 0, unitSize)
				}
			}
		}
		if len(carry) > 0 {
			yield(DispatchUnit{PostID: postID, FollowerIDs: carry}, nil)
		}
	}
}
