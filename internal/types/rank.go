package types

import "strings"

// Rank 员工职级,数值越大级别越高
type Rank int

const (
	RankUnknown Rank = iota
	RankStaff
	RankJTO
	RankSDE
	RankAGM
	RankDGM
	RankGM
	RankPGM
	RankCGM
)

var rankNames = map[Rank]string{
	RankStaff: "staff",
	RankJTO:   "jto",
	RankSDE:   "sde",
	RankAGM:   "agm",
	RankDGM:   "dgm",
	RankGM:    "gm",
	RankPGM:   "pgm",
	RankCGM:   "cgm",
}

// ParseRank 解析职级名称(大小写不敏感),未知返回 RankUnknown
func ParseRank(s string) Rank {
	name := strings.ToLower(strings.TrimSpace(s))
	for r, n := range rankNames {
		if n == name {
			return r
		}
	}
	return RankUnknown
}

func (r Rank) String() string {
	if n, ok := rankNames[r]; ok {
		return n
	}
	return "unknown"
}

// AtLeast 是否不低于给定职级
func (r Rank) AtLeast(min Rank) bool {
	return r != RankUnknown && r >= min
}
