package odm

// collection applies the model's collection kind uniformly to any id set
// the engine manipulates (the idset, secondary index sets, query
// destinations). Unordered collections ignore scores entirely.
type collection struct {
	stx SubstrateTx
	m   *Model
}

func (c collection) size(key string) int {
	if c.m.Kind == Ordered {
		return c.stx.ZCard(key)
	}
	return c.stx.SCard(key)
}

func (c collection) members(key string, desc bool) []string {
	if c.m.Kind == Ordered {
		sms := c.stx.ZRange(key, 0, -1, desc)
		out := make([]string, len(sms))
		for i, sm := range sms {
			out[i] = sm.Member
		}
		return out
	}
	return c.stx.SMembers(key)
}

// add inserts id with the given score, returning the score now stored.
// With additive scoring configured, the score increments what is already
// stored instead of overwriting it.
func (c collection) add(key string, score float64, id string) float64 {
	if c.m.Kind == Ordered {
		if c.m.AutoScore {
			return c.stx.ZIncrBy(key, score, id)
		}
		c.stx.ZAdd(key, score, id)
		return score
	}
	c.stx.SAdd(key, id)
	return score
}

// addAt is add without additive semantics, for restoring a known score.
func (c collection) addAt(key string, score float64, id string) {
	if c.m.Kind == Ordered {
		c.stx.ZAdd(key, score, id)
	} else {
		c.stx.SAdd(key, id)
	}
}

func (c collection) remove(key, id string) {
	if c.m.Kind == Ordered {
		c.stx.ZRem(key, id)
	} else {
		c.stx.SRem(key, id)
	}
}

func (c collection) contains(key, id string) bool {
	if c.m.Kind == Ordered {
		_, ok := c.stx.ZScore(key, id)
		return ok
	}
	return c.stx.SIsMember(key, id)
}

func (c collection) score(key, id string) (float64, bool) {
	if c.m.Kind == Ordered {
		return c.stx.ZScore(key, id)
	}
	return 0, c.stx.SIsMember(key, id)
}

func (c collection) unionInto(dest string, srcs ...string) {
	if len(srcs) == 0 {
		return
	}
	if c.m.Kind == Ordered {
		c.stx.ZUnionStore(dest, srcs...)
	} else {
		c.stx.SUnionStore(dest, srcs...)
	}
}
