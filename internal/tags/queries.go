package tags

const (
	MaxTrendingTags   = 1000
	MaxAuthorTagStats = 1000
)

// TrendingTags lists tag aggregates in trending order. When after is set the
// listing starts at the first tag whose name is not less than after.
func (s *Store) TrendingTags(after string, limit int) []*Stats {
	limit = min(limit, MaxTrendingTags)
	if limit <= 0 {
		return nil
	}

	var out []*Stats
	collect := func(st *Stats) bool {
		out = append(out, st)
		return len(out) < limit
	}

	if after == "" {
		s.StatsByTrending.Ascend(collect)
		return out
	}

	start, ok := s.StatsByTag.LowerBound(&Stats{Name: after})
	if !ok {
		return nil
	}
	s.StatsByTrending.AscendFrom(start, collect)
	return out
}

// UsedByAuthor lists the tags an author posted under, most used first.
func (s *Store) UsedByAuthor(author string) []*AuthorStats {
	var out []*AuthorStats
	s.AuthorStatsByPostsCount.AscendFrom(&AuthorStats{Author: author, TotalPosts: ^uint32(0)}, func(a *AuthorStats) bool {
		if a.Author != author {
			return false
		}
		if a.TotalPosts == 0 {
			return true
		}
		out = append(out, a)
		return len(out) < MaxAuthorTagStats
	})
	return out
}
