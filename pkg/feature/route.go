package feature

import "strings"

const (
	PreferPrefix = "prefer_"
	ShortPrefix  = "short_"
)

// Buckets holds user columns partitioned by the path they feed
type Buckets struct {
	Static    []Column // sparse user attributes
	Dense     []Column
	LongTerm  []Column
	ShortTerm []Column
	Sequence  []Column // residual varlen columns, pooled into the profile

	// Misrouted lists residual columns whose names carry a history prefix
	// but whose base is not in the history list.
	Misrouted []string
}

// Route partitions user columns. Dense columns always go to Dense. Other
// columns with an explicit role keep it;
// RoleAuto varlen columns named prefer_<f> or short_<f> for f in history go
// to the long-term and short-term buckets, anything else to Sequence.
// Order within each bucket follows the input order.
func Route(columns []Column, history []string) Buckets {
	preferNames := make(map[string]string, len(history))
	shortNames := make(map[string]string, len(history))
	for _, h := range history {
		preferNames[PreferPrefix+h] = h
		shortNames[ShortPrefix+h] = h
	}

	var b Buckets
	for _, c := range columns {
		if c.Kind == KindDense {
			b.Dense = append(b.Dense, c)
			continue
		}
		switch c.Role {
		case RoleStatic:
			b.Static = append(b.Static, c)
			continue
		case RoleLongTerm:
			b.LongTerm = append(b.LongTerm, withBase(c, PreferPrefix))
			continue
		case RoleShortTerm:
			b.ShortTerm = append(b.ShortTerm, withBase(c, ShortPrefix))
			continue
		case RoleSequence:
			b.Sequence = append(b.Sequence, c)
			continue
		}

		switch c.Kind {
		case KindSparse:
			b.Static = append(b.Static, c)
		case KindVarLenSparse:
			if base, ok := preferNames[c.Name]; ok {
				c.Role, c.Base = RoleLongTerm, base
				b.LongTerm = append(b.LongTerm, c)
			} else if base, ok := shortNames[c.Name]; ok {
				c.Role, c.Base = RoleShortTerm, base
				b.ShortTerm = append(b.ShortTerm, c)
			} else {
				if strings.HasPrefix(c.Name, PreferPrefix) || strings.HasPrefix(c.Name, ShortPrefix) {
					b.Misrouted = append(b.Misrouted, c.Name)
				}
				c.Role = RoleSequence
				b.Sequence = append(b.Sequence, c)
			}
		}
	}
	return b
}

func withBase(c Column, prefix string) Column {
	if c.Base == "" {
		c.Base = strings.TrimPrefix(c.Name, prefix)
	}
	return c
}
